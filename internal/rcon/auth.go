package rcon

import (
	"crypto/subtle"
	"net"
)

type Level uint8

const (
	LevelDenied Level = iota
	LevelBasic
	LevelMaster
)

func (l Level) String() string {
	switch l {
	case LevelBasic:
		return "basic"
	case LevelMaster:
		return "master"
	}
	return "denied"
}

// SafeEqual compares a candidate password in constant time. An empty
// actual password disables access and never matches.
func SafeEqual(candidate, actual string) bool {
	if actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(actual)) == 1
}

// Policy decides the access level of an rcon request.
type Policy struct {
	Password       string
	MasterPassword string
	// AutoAuthorizeLoopback grants master access to clients on this machine.
	AutoAuthorizeLoopback bool
	// AutoAuthorizeInternal grants master access to private network clients.
	AutoAuthorizeInternal bool
}

func (p Policy) Authorize(candidate string, addr net.Addr) Level {
	ip := addrIP(addr)
	if p.AutoAuthorizeLoopback && (ip.IsLoopback() || isPipe(addr)) {
		return LevelMaster
	}
	if p.AutoAuthorizeInternal && ip != nil && ip.IsPrivate() {
		return LevelMaster
	}
	if SafeEqual(candidate, p.MasterPassword) {
		return LevelMaster
	}
	if SafeEqual(candidate, p.Password) {
		// without a master password the basic one is all there is
		if p.MasterPassword == "" {
			return LevelMaster
		}
		return LevelBasic
	}
	return LevelDenied
}

func addrIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	}
	return nil
}

func isPipe(addr net.Addr) bool {
	return addr != nil && addr.Network() == "pipe"
}
