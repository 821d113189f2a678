package smf2log

// OperatorParams mirrors the per-operator register fields of the YM2151.
type OperatorParams struct {
	DT1, MUL int
	TL       int
	KS, AR   int
	AMSEN    bool
	D1R      int
	DT2, D2R int
	D1L, RR  int
}

// Patch is a complete channel voice. Ops are in register slot order
// M1, M2, C1, C2.
type Patch struct {
	Name string
	CON  int
	FB   int
	Ops  [4]OperatorParams
}

// carriers lists the output slots for each connection algorithm.
var carriers = [8][]int{
	{3},
	{3},
	{3},
	{3},
	{2, 3},
	{1, 2, 3},
	{1, 2, 3},
	{0, 1, 2, 3},
}

// DefaultBank is indexed by MIDI program number modulo its length.
var DefaultBank = []Patch{
	{
		Name: "electric piano",
		CON:  4,
		FB:   5,
		Ops: [4]OperatorParams{
			{MUL: 1, TL: 32, AR: 31, D1R: 10, D2R: 3, D1L: 3, RR: 7},
			{MUL: 3, TL: 42, AR: 31, D1R: 12, D2R: 3, D1L: 4, RR: 7},
			{MUL: 1, TL: 0, AR: 31, D1R: 6, D2R: 2, D1L: 2, RR: 7},
			{MUL: 1, TL: 0, AR: 31, D1R: 6, D2R: 2, D1L: 2, RR: 7},
		},
	},
	{
		Name: "brass",
		CON:  2,
		FB:   6,
		Ops: [4]OperatorParams{
			{MUL: 1, TL: 28, AR: 24, D1R: 4, D1L: 1, RR: 8},
			{MUL: 1, TL: 36, AR: 26, D1R: 4, D1L: 1, RR: 8},
			{MUL: 2, TL: 38, AR: 26, D1R: 4, D1L: 1, RR: 8},
			{MUL: 1, TL: 0, AR: 24, D1R: 2, D1L: 1, RR: 8},
		},
	},
	{
		Name: "organ",
		CON:  7,
		FB:   0,
		Ops: [4]OperatorParams{
			{MUL: 1, TL: 8, AR: 31, RR: 9},
			{MUL: 2, TL: 12, AR: 31, RR: 9},
			{MUL: 4, TL: 18, AR: 31, RR: 9},
			{MUL: 8, TL: 24, AR: 31, RR: 9},
		},
	},
	{
		Name: "bass",
		CON:  0,
		FB:   7,
		Ops: [4]OperatorParams{
			{MUL: 0, TL: 30, AR: 31, D1R: 14, D1L: 5, RR: 9},
			{MUL: 1, TL: 40, AR: 31, D1R: 12, D1L: 5, RR: 9},
			{MUL: 1, TL: 24, AR: 31, D1R: 10, D1L: 4, RR: 9},
			{MUL: 1, TL: 0, AR: 31, D1R: 5, D2R: 4, D1L: 3, RR: 9},
		},
	},
}

func bankPatch(program int) Patch {
	return DefaultBank[program%len(DefaultBank)]
}
