// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hdfsfile

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/colinmarc/hdfs/v2"
	"github.com/colinmarc/hdfs/v2/hadoopconf"
	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Keys of the Hadoop configuration consulted by this package.
const (
	KeyDefaultFS      = "fs.defaultFS"
	keyDefaultFSOld   = "fs.default.name"
	KeyReplication    = "dfs.replication"
	KeyBlockSize      = "dfs.blocksize"
	KeyUser           = "hadoop.user.name"
	KeyAuthentication = "hadoop.security.authentication"
	KeyConnectTimeout = "ipc.client.connect.timeout"
	keyNameservices   = "dfs.nameservices"
	keyRPCAddress     = "dfs.namenode.rpc-address"
)

const (
	// DefaultPort is the namenode RPC port used when a URL names none.
	DefaultPort = 8020
	// DefaultReplication is used when dfs.replication is unset.
	DefaultReplication = 3
	// DefaultBlockSize is used when dfs.blocksize is unset.
	DefaultBlockSize = int64(128 * data.MiB)

	defaultConnectTimeout = 20 * time.Second
)

// Config is the endpoint configuration: a Hadoop key/value map, typically
// loaded from core-site.xml and hdfs-site.xml, plus overrides. It is safe for
// concurrent use.
type Config struct {
	mu   sync.Mutex
	conf hadoopconf.HadoopConf
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{conf: hadoopconf.HadoopConf{}}
}

// LoadConfig reads core-site.xml and hdfs-site.xml from dir. If dir is
// empty, the directory is found through $HADOOP_CONF_DIR or $HADOOP_HOME; a
// missing directory yields an empty configuration.
func LoadConfig(dir string) (*Config, error) {
	var (
		conf hadoopconf.HadoopConf
		err  error
	)
	if dir == "" {
		conf, err = hadoopconf.LoadFromEnvironment()
	} else {
		if _, err = os.Stat(dir); err != nil {
			return nil, errors.E(err, "hdfsfile.loadconfig", dir)
		}
		conf, err = hadoopconf.Load(dir)
	}
	if err != nil {
		return nil, errors.E(err, "hdfsfile.loadconfig", dir)
	}
	if conf == nil {
		conf = hadoopconf.HadoopConf{}
	}
	log.Debug.Printf("hdfsfile: loaded %d configuration keys from %q", len(conf), dir)
	return &Config{conf: conf}, nil
}

// Set overrides a configuration key.
func (c *Config) Set(key, value string) {
	c.mu.Lock()
	c.conf[key] = value
	c.mu.Unlock()
}

// SetFlag parses "key=value" and sets it. It is meant for repeated
// "-D key=value" command-line flags.
func (c *Config) SetFlag(kv string) error {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("hdfsfile: bad configuration %q, want key=value", kv))
	}
	c.Set(strings.TrimSpace(kv[:i]), strings.TrimSpace(kv[i+1:]))
	return nil
}

// Get returns the value of the key, or "" if it is unset.
func (c *Config) Get(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conf[key]
}

// Keys returns the sorted list of keys that are set.
func (c *Config) Keys() []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.conf))
	for k := range c.conf {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	sort.Strings(keys)
	return keys
}

func (c *Config) snapshot() hadoopconf.HadoopConf {
	c.mu.Lock()
	defer c.mu.Unlock()
	conf := make(hadoopconf.HadoopConf, len(c.conf))
	for k, v := range c.conf {
		conf[k] = v
	}
	return conf
}

// DefaultFS returns the URL of the default file system, e.g.,
// "hdfs://namenode:8020". It is used for URLs with an empty authority, as in
// "hdfs:///user/alice".
func (c *Config) DefaultFS() string {
	if fs := c.Get(KeyDefaultFS); fs != "" {
		return fs
	}
	return c.Get(keyDefaultFSOld)
}

// Replication returns dfs.replication, or DefaultReplication.
func (c *Config) Replication() int {
	v := c.Get(KeyReplication)
	if v == "" {
		return DefaultReplication
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Error.Printf("hdfsfile: ignoring bad %s=%q, using %d", KeyReplication, v, DefaultReplication)
		return DefaultReplication
	}
	return n
}

// BlockSize returns dfs.blocksize, or DefaultBlockSize. Values may carry a
// unit suffix as Hadoop allows, e.g., "128m" or "1g".
func (c *Config) BlockSize() int64 {
	v := c.Get(KeyBlockSize)
	if v == "" {
		return DefaultBlockSize
	}
	n, err := parseSize(v)
	if err != nil || n <= 0 {
		log.Error.Printf("hdfsfile: ignoring bad %s=%q, using %v", KeyBlockSize, v, data.Size(DefaultBlockSize))
		return DefaultBlockSize
	}
	return n
}

func parseSize(v string) (int64, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(v)))); err != nil {
		return 0, err
	}
	return int64(size.Bytes()), nil
}

// User returns the user to act as: hadoop.user.name, else
// $HADOOP_USER_NAME, else the current OS user.
func (c *Config) User() string {
	if u := c.Get(KeyUser); u != "" {
		return u
	}
	if u := os.Getenv("HADOOP_USER_NAME"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

// Kerberos reports whether hadoop.security.authentication is "kerberos".
func (c *Config) Kerberos() bool {
	return strings.EqualFold(c.Get(KeyAuthentication), "kerberos")
}

// ConnectTimeout returns ipc.client.connect.timeout, in milliseconds as in
// Hadoop.
func (c *Config) ConnectTimeout() time.Duration {
	v := c.Get(KeyConnectTimeout)
	if v == "" {
		return defaultConnectTimeout
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return defaultConnectTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// Addresses returns the namenode RPC addresses for an URL authority. An HA
// nameservice listed in dfs.nameservices expands to the addresses of all of
// its namenodes. Otherwise the authority is a single host, with DefaultPort
// added if it has no port.
func (c *Config) Addresses(authority string) []string {
	for _, ns := range strings.Split(c.Get(keyNameservices), ",") {
		if strings.TrimSpace(ns) != authority {
			continue
		}
		prefix := keyRPCAddress + "." + authority + "."
		var addrs []string
		for _, k := range c.Keys() {
			if strings.HasPrefix(k, prefix) {
				addrs = append(addrs, c.Get(k))
			}
		}
		if len(addrs) > 0 {
			return addrs
		}
	}
	if _, _, err := net.SplitHostPort(authority); err != nil {
		authority = net.JoinHostPort(authority, strconv.Itoa(DefaultPort))
	}
	return []string{authority}
}

// ClientOptions returns the options to connect to the namenode named by
// authority. When Kerberos is enabled, a Kerberos client is built from the
// local credential cache.
func (c *Config) ClientOptions(authority string) (hdfs.ClientOptions, error) {
	opts := hdfs.ClientOptionsFromConf(c.snapshot())
	opts.Addresses = c.Addresses(authority)
	opts.User = c.User()
	dialer := &net.Dialer{Timeout: c.ConnectTimeout(), KeepAlive: 30 * time.Second}
	opts.NamenodeDialFunc = dialer.DialContext
	opts.DatanodeDialFunc = dialer.DialContext
	if c.Kerberos() {
		kc, err := newKerberosClient()
		if err != nil {
			return opts, errors.E(err, "hdfsfile: kerberos login")
		}
		opts.KerberosClient = kc
		opts.User = ""
		if opts.KerberosServicePrincipleName == "" {
			opts.KerberosServicePrincipleName = "nn/_HOST"
		}
	}
	return opts, nil
}
