package workflow

// CloseSequencer closes the manager's sequencer without shutting the manager
// down.
func CloseSequencer(m *Manager) {
	m.seq.Close()
}
