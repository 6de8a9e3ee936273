package relay

import "sync"

// DefaultPersona is the built-in persona used when none is configured.
const DefaultPersona = `You are Maya, a caring and empathetic AI companion. Your role is to:
1. Engage in friendly conversation
2. Provide supportive and thoughtful responses
3. Help users with their questions and concerns
4. Keep responses concise but meaningful
5. Maintain a warm and approachable tone

Remember to:
- Be empathetic and understanding
- Stay positive and encouraging
- Keep responses short`

// PersonaStore holds the current persona text. The admin server swaps it at
// runtime while connectors read it on every message.
type PersonaStore struct {
	mu      sync.RWMutex
	persona string
}

// NewPersonaStore creates a store with the given persona, or DefaultPersona
// if empty.
func NewPersonaStore(persona string) *PersonaStore {
	if persona == "" {
		persona = DefaultPersona
	}
	return &PersonaStore{persona: persona}
}

// Get returns the current persona.
func (s *PersonaStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona
}

// Set replaces the persona.
func (s *PersonaStore) Set(persona string) {
	s.mu.Lock()
	s.persona = persona
	s.mu.Unlock()
}
