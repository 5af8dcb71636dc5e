package session

import "github.com/gorilla/securecookie"

// BreakCodec swaps in a codec without keys so every Encode fails.
func BreakCodec(m *Manager) {
	m.codec = securecookie.New(nil, nil)
}
