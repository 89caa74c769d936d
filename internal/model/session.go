package model

import "fmt"

// AuthSession is the persisted proof of sign-in. The short JSON names match
// the entry layout other clients of the same profile already read.
type AuthSession struct {
	Username string `json:"u"`
	IssuedAt int64  `json:"t"`
	Token    string `json:"token"`
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Usage is a snapshot of the quota counter.
type Usage struct {
	Count     int `json:"count"`
	Ceiling   int `json:"ceiling"`
	Remaining int `json:"remaining"`
}
