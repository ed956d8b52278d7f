package scenario

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPhase = errors.New("scenario: unknown phase")

// Family selects which protocol-model template a phase is materialized from.
type Family string

const (
	FamilyRegistration   Family = "registration"
	FamilyAuthentication Family = "authentication"
)

// Storage is where the authenticator keeps credential material.
type Storage string

const (
	StorageClient Storage = "client"
	StorageServer Storage = "server"
)

// Transaction is the authentication sub-protocol variant. Registration
// phases carry TransactionNone.
type Transaction string

const (
	TransactionNone    Transaction = ""
	TransactionEmpty   Transaction = "empty"
	TransactionSimple  Transaction = "simple"
	TransactionGeneric Transaction = "generic"
)

// Phase is one fixed scenario class with its own catalogs and template.
type Phase struct {
	Name        string
	Family      Family
	Storage     Storage
	Transaction Transaction
	Description string
}

func (p Phase) String() string {
	return p.Name
}

var phases = []Phase{
	{
		Name:        "reg_client",
		Family:      FamilyRegistration,
		Storage:     StorageClient,
		Description: "registration process with client-side storage authenticators",
	},
	{
		Name:        "reg_server",
		Family:      FamilyRegistration,
		Storage:     StorageServer,
		Description: "registration process with server-side storage authenticators",
	},
	{
		Name:        "auth_client_em",
		Family:      FamilyAuthentication,
		Storage:     StorageClient,
		Transaction: TransactionEmpty,
		Description: "authentication process with client-side storage authenticators",
	},
	{
		Name:        "auth_client_sim",
		Family:      FamilyAuthentication,
		Storage:     StorageClient,
		Transaction: TransactionSimple,
		Description: "simple transaction authorization process with client-side storage authenticators",
	},
	{
		Name:        "auth_client_gen",
		Family:      FamilyAuthentication,
		Storage:     StorageClient,
		Transaction: TransactionGeneric,
		Description: "generic transaction authorization process with client-side storage authenticators",
	},
	{
		Name:        "auth_server_em",
		Family:      FamilyAuthentication,
		Storage:     StorageServer,
		Transaction: TransactionEmpty,
		Description: "authentication process with server-side storage authenticators",
	},
	{
		Name:        "auth_server_sim",
		Family:      FamilyAuthentication,
		Storage:     StorageServer,
		Transaction: TransactionSimple,
		Description: "simple transaction authorization process with server-side storage authenticators",
	},
	{
		Name:        "auth_server_gen",
		Family:      FamilyAuthentication,
		Storage:     StorageServer,
		Transaction: TransactionGeneric,
		Description: "generic transaction authorization process with server-side storage authenticators",
	},
}

// Phases returns all eight phases in their canonical order.
func Phases() []Phase {
	out := make([]Phase, len(phases))
	copy(out, phases)
	return out
}

// PhaseNames returns the canonical phase selector names.
func PhaseNames() []string {
	names := make([]string, 0, len(phases))
	for _, p := range phases {
		names = append(names, p.Name)
	}
	return names
}

// LookupPhase resolves a phase selector.
func LookupPhase(name string) (Phase, error) {
	key := strings.TrimSpace(name)
	for _, p := range phases {
		if p.Name == key {
			return p, nil
		}
	}
	return Phase{}, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
}

// SelectPhases resolves a list of selectors in canonical order, dropping
// duplicates. An empty list selects every phase.
func SelectPhases(names []string) ([]Phase, error) {
	if len(names) == 0 {
		return Phases(), nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		p, err := LookupPhase(name)
		if err != nil {
			return nil, err
		}
		want[p.Name] = true
	}
	out := make([]Phase, 0, len(want))
	for _, p := range phases {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out, nil
}
