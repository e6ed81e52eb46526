/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bbva/phycoeval/log"
	"github.com/bbva/phycoeval/mcmc"
)

type summarizeConfig struct {
	Log    string `desc:"Set log level to info, error or debug"`
	Burnin int    `desc:"Trees to skip at the start of every tree log"`
}

var summarizeCmd *cobra.Command = &cobra.Command{
	Use:   "summarize [tree logs...]",
	Short: "Tally the tree models of one or more tree logs",
	Long: `Summarize reads tree logs written by the sample command and prints the
frequency of every tree model, the distribution of the number of distinct
node heights and the root height mean and variance.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarize,
}

var summarizeCtx context.Context

func init() {
	summarizeCtx = configSummarize()
	Root.AddCommand(summarizeCmd)
}

func configSummarize() context.Context {
	return configFlags("summarize.config", &summarizeConfig{Log: "info"}, summarizeCmd.Flags())
}

func runSummarize(cmd *cobra.Command, args []string) error {
	conf := summarizeCtx.Value(k("summarize.config")).(*summarizeConfig)
	logger := newLogger("phycoeval", conf.Log)
	return summarize(args, conf.Burnin, logger, cmd.OutOrStdout())
}

func summarize(paths []string, burnin int, logger log.Logger, out io.Writer) error {
	if burnin < 0 {
		return errors.Errorf("negative burnin %d", burnin)
	}
	tally := mcmc.NewTopologyTally()
	for _, path := range paths {
		before := tally.Total()
		if err := summarizeFile(tally, path, burnin); err != nil {
			return err
		}
		logger.Infof("Read %d trees from %s", tally.Total()-before, path)
	}
	if tally.Total() == 0 {
		return errors.New("no trees left after burnin")
	}
	return tally.Write(out)
}

func summarizeFile(tally *mcmc.TopologyTally, path string, burnin int) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open tree log")
	}
	defer f.Close()
	return errors.Wrap(tally.ReadTreeLog(f, burnin), path)
}
