package ledger

// Unsigned is the set of counter widths used by records.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// CheckedAdd returns a+b or ErrArithmeticOverflow.
func CheckedAdd[T Unsigned](a, b T) (T, error) {
	c := a + b
	if c < a {
		return 0, ErrArithmeticOverflow
	}
	return c, nil
}

// CheckedSub returns a-b or ErrArithmeticUnderflow.
func CheckedSub[T Unsigned](a, b T) (T, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}

// CheckedMul returns a*b or ErrArithmeticOverflow.
func CheckedMul[T Unsigned](a, b T) (T, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	c := a * b
	if c/a != b {
		return 0, ErrArithmeticOverflow
	}
	return c, nil
}
