package config

// Modules lists the names of the paused modules in the form understood by
// the node's pause guard.
func (p Pauses) Modules() []string {
	var modules []string
	if p.Bond {
		modules = append(modules, "bond")
	}
	if p.ERC20 {
		modules = append(modules, "erc20")
	}
	return modules
}
