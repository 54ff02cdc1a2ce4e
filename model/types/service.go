package types

// Service is an action service interface; every engine action (agent, tool,
// crew control) implements it so that pipeline tasks can address it by name.
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}

type Proxy func(base Service) Service
