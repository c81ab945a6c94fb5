package cluster

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const DefaultPort = 6379

var (
	errParseAddress      = "cluster: parse address '%s'"
	errEmptyAddress      = "cluster: empty node address"
	errUnsupportedScheme = "cluster: unsupported scheme '%s'"
	errInvalidPort       = "cluster: invalid port '%s'"
	errInvalidDatabase   = "cluster: cluster nodes only serve database 0, got '%s'"
)

type NodeAddr struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (a NodeAddr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

type TLSConfig struct {
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// ConnectionInfo describes how to reach and authenticate against one seed
// node.
type ConnectionInfo struct {
	Addr     NodeAddr   `json:"addr"`
	Username string     `json:"username,omitempty"`
	Password string     `json:"password,omitempty"`
	TLS      *TLSConfig `json:"tls,omitempty"`
}

func (i ConnectionInfo) ConnectionInfo() (ConnectionInfo, error) {
	if i.Addr.Host == "" {
		return i, errors.New(errEmptyAddress)
	}
	if i.Addr.Port == 0 {
		i.Addr.Port = DefaultPort
	}
	return i, nil
}

func (i ConnectionInfo) String() string {
	return i.Addr.String()
}

func (i ConnectionInfo) sameAuth(o ConnectionInfo) bool {
	if i.Username != o.Username || i.Password != o.Password {
		return false
	}
	if (i.TLS == nil) != (o.TLS == nil) {
		return false
	}
	return i.TLS == nil || *i.TLS == *o.TLS
}

// IntoConnectionInfo is implemented by anything that can describe a seed
// node.
type IntoConnectionInfo interface {
	ConnectionInfo() (ConnectionInfo, error)
}

// Address is a seed node given as "host:port", "host" or a
// redis://[user[:password]@]host[:port][/0] URL. The rediss scheme enables
// TLS and a "#insecure" fragment skips certificate verification.
type Address string

func (a Address) ConnectionInfo() (ConnectionInfo, error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return ConnectionInfo{}, errors.New(errEmptyAddress)
	}
	if !strings.Contains(s, "://") {
		return parseHostPort(s)
	}
	u, err := url.Parse(s)
	if err != nil {
		return ConnectionInfo{}, errors.Annotatef(err, errParseAddress, s)
	}
	info := ConnectionInfo{}
	switch u.Scheme {
	case "redis":
	case "rediss":
		info.TLS = &TLSConfig{InsecureSkipVerify: u.Fragment == "insecure"}
	default:
		return ConnectionInfo{}, errors.Errorf(errUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return ConnectionInfo{}, errors.New(errEmptyAddress)
	}
	info.Addr.Host = u.Hostname()
	info.Addr.Port = DefaultPort
	if port := u.Port(); port != "" {
		if info.Addr.Port, err = parsePort(port); err != nil {
			return ConnectionInfo{}, err
		}
	}
	if u.User != nil {
		info.Username = u.User.Username()
		info.Password, _ = u.User.Password()
	}
	if db := strings.Trim(u.Path, "/"); db != "" && db != "0" {
		return ConnectionInfo{}, errors.Errorf(errInvalidDatabase, db)
	}
	return info, nil
}

func parseHostPort(s string) (ConnectionInfo, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		if strings.Contains(s, ":") {
			return ConnectionInfo{}, errors.Annotatef(err, errParseAddress, s)
		}
		return ConnectionInfo{Addr: NodeAddr{Host: s, Port: DefaultPort}}, nil
	}
	if host == "" {
		return ConnectionInfo{}, errors.New(errEmptyAddress)
	}
	p, err := parsePort(port)
	if err != nil {
		return ConnectionInfo{}, err
	}
	return ConnectionInfo{Addr: NodeAddr{Host: host, Port: p}}, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, errors.Errorf(errInvalidPort, s)
	}
	return p, nil
}

// ParseAddresses splits a comma or whitespace separated node list.
func ParseAddresses(s string) []Address {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	addrs := make([]Address, 0, len(fields))
	for _, field := range fields {
		addrs = append(addrs, Address(field))
	}
	return addrs
}

// ResolveNodes converts the seed nodes in order.
func ResolveNodes[T IntoConnectionInfo](nodes []T) ([]ConnectionInfo, error) {
	infos := make([]ConnectionInfo, 0, len(nodes))
	for i, node := range nodes {
		info, err := node.ConnectionInfo()
		if err != nil {
			return nil, errors.Annotatef(err, "cluster: node #%d", i)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func addrs(nodes []ConnectionInfo) []string {
	s := make([]string, 0, len(nodes))
	for _, node := range nodes {
		s = append(s, node.Addr.String())
	}
	return s
}

func (i ConnectionInfo) GoString() string {
	password := ""
	if i.Password != "" {
		password = ":***"
	}
	user := ""
	if i.Username != "" || password != "" {
		user = i.Username + password + "@"
	}
	scheme := "redis"
	if i.TLS != nil {
		scheme = "rediss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, user, i.Addr)
}
