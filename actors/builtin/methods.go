package builtin

// Opcode is the first byte of an instruction's data and selects the program method.
type Opcode uint8

type vestingMethods struct {
	CreateVesting Opcode
	Deposit       Opcode
	Claim         Opcode
}

var MethodsVesting = vestingMethods{0, 1, 2}
