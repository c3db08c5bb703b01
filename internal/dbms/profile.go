// Package dbms describes the per-vendor capabilities the rest of warp
// consults when introspecting and generating SQL.
package dbms

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrUnknownVendor is returned by Lookup for an unrecognized subprotocol.
var ErrUnknownVendor = errors.New("unknown dbms vendor")

// IdentifierCase is how a vendor stores unquoted identifiers.
type IdentifierCase int

const (
	MixedCase IdentifierCase = iota
	UpperCase
	LowerCase
)

// Profile is an immutable capability descriptor for one vendor. Profiles
// are shared by every caller; none of their methods mutate state.
type Profile struct {
	// Subprotocol is the JDBC-subprotocol-style vendor identifier.
	Subprotocol string
	// DriverName is the database/sql driver the connector opens.
	DriverName string
	// BindType is the placeholder style for parameterized statements.
	BindType int

	AutoIncrementIsPrimaryKey  bool
	CaseSensitive              bool
	IdentifierCase             IdentifierCase
	SchemaIsCatalog            bool
	AutoIncrementNeedsSequence bool
	AutoIncrementNeedsTrigger  bool
	AutoIncrementInMetadata    bool
	EmptyStringIsNull          bool
	ResetSequencesAfterImport  bool
	// TimeIsTimestamp is set when TIME columns are created as TIMESTAMP,
	// so time-of-day values must be bound with a date.
	TimeIsTimestamp bool
	// InlineConstraints is set when primary and foreign keys can only be
	// declared at table creation.
	InlineConstraints bool

	quoteOpen, quoteClose string
	generatedIndex        func(name string) bool
	defaultPKName         func(table, name string) bool
}

// QuoteIdentifier wraps name in the vendor's identifier quotes, doubling
// any embedded closing quote.
func (p *Profile) QuoteIdentifier(name string) string {
	open, closing := p.quoteOpen, p.quoteClose
	if open == "" {
		open, closing = `"`, `"`
	}
	return open + strings.ReplaceAll(name, closing, closing+closing) + closing
}

// IsGeneratedIndex reports whether an index name is an artifact the
// database created for a constraint rather than a user-declared index.
func (p *Profile) IsGeneratedIndex(name string) bool {
	if p.generatedIndex == nil {
		return false
	}
	return p.generatedIndex(name)
}

// IsDefaultPrimaryKeyName reports whether name is the synthetic constraint
// name the vendor assigns to an unnamed primary key on table.
func (p *Profile) IsDefaultPrimaryKeyName(table, name string) bool {
	if name == "" {
		return true
	}
	if p.defaultPKName == nil {
		return false
	}
	return p.defaultPKName(table, name)
}

// StoredName returns name as the vendor stores an unquoted identifier.
func (p *Profile) StoredName(name string) string {
	switch p.IdentifierCase {
	case UpperCase:
		return strings.ToUpper(name)
	case LowerCase:
		return strings.ToLower(name)
	}
	return name
}

// SameName compares identifiers using the vendor's case sensitivity.
func (p *Profile) SameName(a, b string) bool {
	if p.CaseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// Matches reports whether a dialect tag selects this profile. An empty tag
// selects every profile; otherwise the tag must occur in the subprotocol.
func (p *Profile) Matches(dialect string) bool {
	return dialect == "" || strings.Contains(p.Subprotocol, dialect)
}

func (p *Profile) String() string { return p.Subprotocol }

// Lookup returns the profile for a subprotocol such as "postgresql".
func Lookup(subprotocol string) (*Profile, error) {
	if p, ok := profiles[subprotocol]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownVendor, subprotocol, strings.Join(Subprotocols(), ", "))
}

// MustLookup is Lookup for statically known subprotocols.
func MustLookup(subprotocol string) *Profile {
	p, err := Lookup(subprotocol)
	if err != nil {
		panic(err)
	}
	return p
}

// Subprotocols returns the supported vendor identifiers, sorted.
func Subprotocols() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

var profiles = map[string]*Profile{
	"h2": {
		Subprotocol:               "h2",
		DriverName:                "pgx",
		BindType:                  sqlx.DOLLAR,
		IdentifierCase:            UpperCase,
		CaseSensitive:             true,
		AutoIncrementInMetadata:   true,
		ResetSequencesAfterImport: true,
		generatedIndex: func(name string) bool {
			return strings.EqualFold(name, "PRIMARY") ||
				hasPrefixFold(name, "PRIMARY_KEY_") ||
				hasPrefixFold(name, "FK_") ||
				hasPrefixFold(name, "CONSTRAINT_INDEX_")
		},
		defaultPKName: func(_, name string) bool {
			return hasPrefixFold(name, "CONSTRAINT_") || hasPrefixFold(name, "PRIMARY_KEY_")
		},
	},
	"derby": {
		Subprotocol:               "derby",
		DriverName:                "derby",
		BindType:                  sqlx.QUESTION,
		IdentifierCase:            UpperCase,
		CaseSensitive:             true,
		AutoIncrementInMetadata:   true,
		ResetSequencesAfterImport: true,
		generatedIndex: func(name string) bool {
			return hasPrefixFold(name, "SQL") || hasPrefixFold(name, "FK_")
		},
		defaultPKName: func(_, name string) bool {
			return hasPrefixFold(name, "SQL")
		},
	},
	"mysql": {
		Subprotocol:               "mysql",
		DriverName:                "mysql",
		BindType:                  sqlx.QUESTION,
		IdentifierCase:            MixedCase,
		SchemaIsCatalog:           true,
		AutoIncrementIsPrimaryKey: true,
		AutoIncrementInMetadata:   true,
		quoteOpen:                 "`",
		quoteClose:                "`",
		generatedIndex: func(name string) bool {
			return strings.EqualFold(name, "PRIMARY") || hasPrefixFold(name, "FK_")
		},
		defaultPKName: func(_, name string) bool {
			return strings.EqualFold(name, "PRIMARY")
		},
	},
	"mariadb": {
		Subprotocol:               "mariadb",
		DriverName:                "mysql",
		BindType:                  sqlx.QUESTION,
		IdentifierCase:            MixedCase,
		SchemaIsCatalog:           true,
		AutoIncrementIsPrimaryKey: true,
		AutoIncrementInMetadata:   true,
		quoteOpen:                 "`",
		quoteClose:                "`",
		generatedIndex: func(name string) bool {
			return strings.EqualFold(name, "PRIMARY") || hasPrefixFold(name, "FK_")
		},
		defaultPKName: func(_, name string) bool {
			return strings.EqualFold(name, "PRIMARY")
		},
	},
	"postgresql": {
		Subprotocol:               "postgresql",
		DriverName:                "pgx",
		BindType:                  sqlx.DOLLAR,
		IdentifierCase:            LowerCase,
		CaseSensitive:             true,
		AutoIncrementInMetadata:   true,
		ResetSequencesAfterImport: true,
		defaultPKName: func(table, name string) bool {
			return name == table+"_pkey"
		},
	},
	"oracle": {
		Subprotocol:                "oracle",
		DriverName:                 "oracle",
		BindType:                   sqlx.NAMED,
		IdentifierCase:             UpperCase,
		CaseSensitive:              true,
		AutoIncrementNeedsSequence: true,
		AutoIncrementNeedsTrigger:  true,
		EmptyStringIsNull:          true,
		ResetSequencesAfterImport:  true,
		TimeIsTimestamp:            true,
		generatedIndex: func(name string) bool {
			return hasPrefixFold(name, "SYS_") || hasPrefixFold(name, "BIN$")
		},
		defaultPKName: func(_, name string) bool {
			return hasPrefixFold(name, "SYS_C")
		},
	},
	"sqlite": {
		Subprotocol:               "sqlite",
		DriverName:                "sqlite",
		BindType:                  sqlx.QUESTION,
		IdentifierCase:            MixedCase,
		AutoIncrementIsPrimaryKey: true,
		AutoIncrementInMetadata:   true,
		InlineConstraints:         true,
		generatedIndex: func(name string) bool {
			return hasPrefixFold(name, "sqlite_autoindex_")
		},
	},
}
