// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package file provides basic file operations across the local file system
// and HDFS. It is designed for tools that move data between a workstation and
// a Hadoop cluster, and that read parts of large HDFS files by block.
//
// Overview
//
// This package defines two key interfaces, Implementation and File.
//
// - Implementation provides filesystem operations, such as Open, Create,
// Mkdir, Rename, Remove, and List (directory walking).
//
// - File implements operations on a file. It is created by
// Implementation.{Open,Create} calls. File is similar to go's os.File object
// but provides limited functionality.
//
// Reading and writing files
//
// The following snippet registers the HDFS implementation, then writes and
// reads an HDFS file.
//
//   import (
//    "context"
//    "io/ioutil"
//
//    "github.com/grailbio/hdfskit/file"
//    "github.com/grailbio/hdfskit/file/hdfsfile"
//   )
//
//   func init() {
//     conf, err := hdfsfile.LoadConfig("") // $HADOOP_CONF_DIR
//     ...
//     file.RegisterImplementation("hdfs", func() file.Implementation {
//       return hdfsfile.NewImplementation(
//         hdfsfile.NewDefaultProvider(conf), hdfsfile.Options{Config: conf})
//     })
//   }
//
//   // Caution: this code ignores all errors.
//   func WriteTest() {
//     ctx := context.Background()
//     f, err := file.Create(ctx, "hdfs://learn:9000/tmp/test.txt")
//     n, err = f.Writer(ctx).Write([]byte{"Hello"})
//     err = f.Close(ctx)
//   }
//
//   func ReadTest() {
//     ctx := context.Background()
//     f, err := file.Open(ctx, "hdfs://learn:9000/tmp/test.txt")
//     data, err := ioutil.ReadAll(f.Reader(ctx))
//     err = f.Close(ctx)
//   }
//
// A File object does not implement an io.Reader or io.Writer directly.
// Instead, you must call File.Reader or File.Writer to start reading or
// writing. These methods are split from the File itself so that an
// application can pass different contexts to different I/O operations.
//
// A file opened by Create becomes visible only when Close succeeds. Discard
// abandons it.
//
// File-system operations
//
// The file package provides functions similar to those in the standard os
// package. For example, file.Mkdir("hdfs:///user/alice/in") creates a
// directory and its parents, file.Rename moves a file, file.Remove removes a
// file or an empty directory, and file.Stat returns metadata, including the
// replication factor and block size of HDFS files.
//
// CopyFile uploads or downloads a whole file between any two registered
// file systems.
//
// Blocks
//
// Blocks splits a file into its HDFS blocks. ReadBlock and ReadRange read one
// block, or any byte range, without reading the rest of the file, and
// ReadChunks reads a fixed number of fixed-size chunks from the current
// offset.
//
// Pathname utility functions
//
// Functions file.Base, file.Dir, file.Join work just like
// filepath.{Base,Dir,Join}, except that they handle the URL pathnames
// properly. For example, file.Join("hdfs://learn:9000", "bar") will return
// "hdfs://learn:9000/bar", whereas filepath.Join would return
// "hdfs:/learn:9000/bar".
//
// Registering a filesystem implementation
//
// Function RegisterImplementation associates an implementation to a scheme.
// A local file system implementation is automatically available without any
// explicit registration. Once an implementation is registered, the files for
// that scheme can be opened or created using "scheme://name" pathnames.
//
// Concurrency
//
// The Implementation and File provide an open-close consistency. More
// specifically, this package linearizes fileops, with a fileop defined in the
// following way: fileop is a set of operations, starting from
// Implementation.{Open,Create}, followed by read/write/stat operations on the
// file, followed by File.Close. Operations such as
// Implementation.{Stat,Remove,List} and Lister.Scan form a singleton fileop.
package file
