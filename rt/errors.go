package rt

import "errors"

var (
	ErrTableSealed       = errors.New("vector table is sealed")
	ErrUnknownException  = errors.New("unknown exception or interrupt")
	ErrPreInitRedeclared = errors.New("pre-init hook already bound")
	ErrEntryRedeclared   = errors.New("entry point already bound")
	ErrTrapNumber        = errors.New("trap number out of range")
	ErrInvalidVector     = errors.New("vector number not available for device interrupts")
	ErrVectorInUse       = errors.New("vector already declared")
	ErrNameInUse         = errors.New("interrupt name already declared")
	ErrUnknownPolicy     = errors.New("unknown memory policy")
)
