package deploy

import "strings"

// Mode selects which publishers a run executes.
type Mode string

const (
	ModeRepo Mode = "repo"
	ModeCDN  Mode = "cdn"
	ModeBoth Mode = "both"
)

// Modes lists the accepted run modes in help order.
var Modes = []Mode{ModeRepo, ModeCDN, ModeBoth}

// ParseMode maps a command line argument to a Mode. An empty argument selects
// ModeBoth; help requests return ErrHelp.
func ParseMode(arg string) (Mode, error) {
	switch strings.TrimSpace(arg) {
	case "":
		return ModeBoth, nil
	case string(ModeRepo):
		return ModeRepo, nil
	case string(ModeCDN):
		return ModeCDN, nil
	case string(ModeBoth):
		return ModeBoth, nil
	case "help", "--help", "-h":
		return "", ErrHelp
	default:
		return "", &UsageError{Arg: arg}
	}
}

// IncludesRepo reports whether the repository publisher runs in this mode.
func (m Mode) IncludesRepo() bool {
	return m == ModeRepo || m == ModeBoth
}

// IncludesCDN reports whether the CDN publisher runs in this mode.
func (m Mode) IncludesCDN() bool {
	return m == ModeCDN || m == ModeBoth
}

func (m Mode) String() string {
	return string(m)
}
