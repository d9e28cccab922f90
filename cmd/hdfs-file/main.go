// Command hdfs-file performs one filesystem operation per invocation on
// local paths and "hdfs://" URLs. Run it without arguments for the list of
// subcommands.
//
//	hdfs-file -conf /etc/hadoop/conf mkdir hdfs:///user/alice/in
//	hdfs-file -D dfs.replication=2 put data.csv hdfs:///user/alice/in
//	hdfs-file ls -l -b hdfs:///user/alice/in
//	hdfs-file block -i 1 hdfs:///user/alice/in/data.csv block1.bin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hdfskit/cmd/hdfs-file/cmd"
	"github.com/grailbio/hdfskit/file"
	"github.com/grailbio/hdfskit/file/hdfsfile"
)

// confFlags collects repeated "-D key=value" flags.
type confFlags []string

func (f *confFlags) String() string { return strings.Join(*f, ",") }

func (f *confFlags) Set(kv string) error {
	*f = append(*f, kv)
	return nil
}

func loadConfig(dir string, overrides []string) (*hdfsfile.Config, error) {
	conf, err := hdfsfile.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	for _, kv := range overrides {
		if err := conf.SetFlag(kv); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

func main() {
	var overrides confFlags
	flag.Var(&overrides, "D", "Set a Hadoop configuration key, as in -D dfs.replication=2. May be repeated.")
	confDir := flag.String("conf", "", "Directory holding core-site.xml and hdfs-site.xml. Defaults to $HADOOP_CONF_DIR.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] subcommand args...\n", os.Args[0])
		flag.PrintDefaults()
		cmd.PrintHelp()
	}
	log.AddFlags()
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	conf, err := loadConfig(*confDir, overrides)
	if err != nil {
		log.Fatal(err)
	}
	provider := hdfsfile.NewDefaultProvider(conf)
	file.RegisterImplementation(hdfsfile.Scheme, func() file.Implementation {
		return hdfsfile.NewImplementation(provider, hdfsfile.Options{Config: conf})
	})
	err = cmd.Run(context.Background(), flag.Args())
	if cerr := provider.Close(); cerr != nil {
		log.Error.Printf("close: %v", cerr)
	}
	if err != nil {
		log.Fatal(err)
	}
}
