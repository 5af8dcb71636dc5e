package ttauth

import (
	"errors"
	"fmt"
)

// ClientIdentity is the registered TikTok application. It is built once from
// configuration and handed to every component that talks to the provider.
type ClientIdentity struct {
	Key    string
	Secret string
}

// Validate checks that both halves of the identity are present.
func (c ClientIdentity) Validate() error {
	var errs []error
	if c.Key == "" {
		errs = append(errs, errors.New("client key is empty"))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("client secret is empty"))
	}
	return errors.Join(errs...)
}

// String never prints the secret.
func (c ClientIdentity) String() string {
	return fmt.Sprintf("ClientIdentity{Key: %q, Secret: [redacted]}", c.Key)
}

// GoString never prints the secret.
func (c ClientIdentity) GoString() string {
	return c.String()
}
