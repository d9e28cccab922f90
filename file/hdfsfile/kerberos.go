// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hdfsfile

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	krb "github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
)

// newKerberosClient logs in with the ticket in the credential cache left by
// kinit. The krb5 configuration comes from $KRB5_CONFIG or /etc/krb5.conf,
// the cache from $KRB5CCNAME or /tmp/krb5cc_<uid>.
func newKerberosClient() (*krb.Client, error) {
	confPath := os.Getenv("KRB5_CONFIG")
	if confPath == "" {
		confPath = "/etc/krb5.conf"
	}
	cfg, err := config.Load(confPath)
	if err != nil {
		return nil, errors.E(err, "load", confPath)
	}
	ccachePath, err := credentialCachePath()
	if err != nil {
		return nil, err
	}
	ccache, err := credentials.LoadCCache(ccachePath)
	if err != nil {
		return nil, errors.E(errors.NotAllowed, err, "load credential cache", ccachePath)
	}
	client, err := krb.NewFromCCache(ccache, cfg, krb.DisablePAFXFAST(true))
	if err != nil {
		return nil, errors.E(errors.NotAllowed, err, "kerberos client from", ccachePath)
	}
	log.Debug.Printf("hdfsfile: kerberos credentials from %s", ccachePath)
	return client, nil
}

func credentialCachePath() (string, error) {
	if p := os.Getenv("KRB5CCNAME"); p != "" {
		if strings.HasPrefix(p, "FILE:") {
			return strings.TrimPrefix(p, "FILE:"), nil
		}
		if i := strings.IndexByte(p, ':'); i > 0 && !strings.HasPrefix(p, "/") {
			return "", errors.E(errors.NotSupported, fmt.Sprintf("credential cache type %s", p[:i]))
		}
		return p, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", errors.E(err, "kerberos: current user")
	}
	return "/tmp/krb5cc_" + u.Uid, nil
}
