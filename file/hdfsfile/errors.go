// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package hdfsfile

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/colinmarc/hdfs/v2"
	"github.com/grailbio/base/errors"
)

// Annotate interprets err as a namenode or datanode error and returns a
// version of it annotated with severity and kind from the errors package. The
// optional args are passed to errors.E.
func annotate(err error, retry *retrier, args ...interface{}) error {
	e := func(prefixArgs ...interface{}) error {
		msgs := append(prefixArgs, args...)
		if retry != nil {
			if retry.waitErr != nil {
				msgs = append(msgs, fmt.Sprintf("[waitErr=%v]", retry.waitErr))
			}
			if retry.retries > 0 {
				msgs = append(msgs, fmt.Sprintf("[retries=%d, start=%v]", retry.retries, retry.startTime))
			}
		}
		return errors.E(msgs...)
	}
	if _, ok := err.(*errors.Error); ok {
		return e(err)
	}
	switch {
	case os.IsNotExist(err):
		return e(err, errors.NotExist)
	case os.IsPermission(err):
		return e(err, errors.NotAllowed)
	case os.IsExist(err):
		return e(err, errors.Exists)
	case cause(err) == hdfs.ErrReplicating:
		return e(err, errors.Temporary, errors.Unavailable)
	}
	switch exceptionName(err) {
	case "":
	case "StandbyException", "SafeModeException", "RetriableException":
		return e(err, errors.Temporary, errors.Unavailable)
	case "LeaseExpiredException":
		return e(err, errors.Unavailable)
	case "AccessControlException":
		return e(err, errors.NotAllowed)
	case "FileNotFoundException":
		return e(err, errors.NotExist)
	case "FileAlreadyExistsException":
		return e(err, errors.Exists)
	case "PathIsNotEmptyDirectoryException", "ParentNotDirectoryException":
		return e(err, errors.Precondition)
	case "InvalidPathException", "HadoopIllegalArgumentException", "IllegalArgumentException":
		return e(err, errors.Invalid)
	case "DSQuotaExceededException", "NSQuotaExceededException":
		return e(err, errors.Unavailable)
	default:
		return e(err, errors.Remote)
	}
	if ne, ok := cause(err).(net.Error); ok && ne.Timeout() {
		return e(err, errors.Temporary, errors.Timeout)
	}
	return e(err)
}

// cause strips the *os.PathError wrapper *hdfs.Client puts around errors.
func cause(err error) error {
	for {
		switch e := err.(type) {
		case *os.PathError:
			err = e.Err
		case *os.LinkError:
			err = e.Err
		case *os.SyscallError:
			err = e.Err
		default:
			return err
		}
	}
}

// exceptionName returns the unqualified Java exception class of a remote
// error, e.g., "StandbyException" for "org.apache.hadoop.ipc.StandbyException",
// or "" if err did not come from the namenode.
func exceptionName(err error) string {
	he, ok := cause(err).(hdfs.Error)
	if !ok {
		return ""
	}
	exc := he.Exception()
	if i := strings.LastIndexByte(exc, '.'); i >= 0 {
		exc = exc[i+1:]
	}
	return exc
}

// isTemporary reports whether the operation that failed with err is worth
// retrying.
func isTemporary(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*errors.Error); ok {
		return e.Temporary()
	}
	c := cause(err)
	if c == hdfs.ErrReplicating {
		return true
	}
	switch exceptionName(err) {
	case "StandbyException", "SafeModeException", "RetriableException":
		return true
	}
	if ne, ok := c.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}
