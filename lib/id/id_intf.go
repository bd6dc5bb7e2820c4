package id

// Gen generates the next number.
type Gen func() uint64

// Generator hands out unique numbers, as uint64 or decimal string.
type Generator interface {
	Number() uint64
	Str() string
}

var (
	_ Generator = (*genDelegator)(nil)
)

type genDelegator struct {
	number Gen
	str    func() string
}

func (id *genDelegator) Number() uint64 { return id.number() }
func (id *genDelegator) Str() string    { return id.str() }
