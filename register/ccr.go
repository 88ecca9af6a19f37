package register

// CCR is the condition code byte of SR.
type CCR uint8

const (
	CCRCarry CCR = 1 << iota
	CCROverflow
	CCRZero
	CCRNegative
	CCRExtend
)

func (c CCR) C() bool { return c&CCRCarry != 0 }
func (c CCR) V() bool { return c&CCROverflow != 0 }
func (c CCR) Z() bool { return c&CCRZero != 0 }
func (c CCR) N() bool { return c&CCRNegative != 0 }
func (c CCR) X() bool { return c&CCRExtend != 0 }
