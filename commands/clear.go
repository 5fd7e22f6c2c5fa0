package commands

func Clear(m *Model) {
	m.Output = ""
}
