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
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bbva/phycoeval/log"
	"github.com/bbva/phycoeval/mcmc"
)

var sampleCmd *cobra.Command = &cobra.Command{
	Use:   "sample",
	Short: "Run a Markov chain over shared-height trees",
	Long: `Sample runs a single chain starting from the given tree, or from a
comb over the requested number of leaves. Without a likelihood the chain
samples from the prior, which makes every tree model equally likely.
Sampled trees are written to the tree log and the model frequencies are
printed when the chain stops.`,
	TraverseChildren: true,
	RunE:             runSample,
}

var sampleCtx context.Context

func init() {
	sampleCtx = sampleConfig()
	Root.AddCommand(sampleCmd)
}

func sampleConfig() context.Context {
	return configFlags("sample.config", mcmc.DefaultConfig(), sampleCmd.PersistentFlags())
}

func runSample(cmd *cobra.Command, args []string) error {
	conf := sampleCtx.Value(k("sample.config")).(*mcmc.Config)
	if conf.ConfigFile != "" {
		fromFile, err := mcmc.LoadConfigFile(conf.ConfigFile, conf)
		if err != nil {
			return err
		}
		conf = fromFile
	}

	logger := newLogger("phycoeval", conf.Log)

	ctx, stop := signal.NotifyContext(Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return sample(ctx, conf, logger, cmd.OutOrStdout())
}

// sample runs the configured chain and prints the model tally to out.
func sample(ctx context.Context, conf *mcmc.Config, logger log.Logger, out io.Writer) error {

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if conf.Resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	treeFile, err := os.OpenFile(conf.TreeLog, flags, 0644)
	if err != nil {
		return errors.Wrap(err, "open tree log")
	}
	defer treeFile.Close()

	trees := mcmc.NewTreeLogWriter(treeFile)
	tally := mcmc.NewTopologyTally()

	chain, err := mcmc.NewChain(conf,
		mcmc.WithSampler(trees),
		mcmc.WithSampler(tally),
		mcmc.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if conf.Resume {
		cp, err := mcmc.ReadCheckpoint(conf.Checkpoint)
		if err != nil {
			return err
		}
		if err := chain.Resume(cp); err != nil {
			return err
		}
	}

	if conf.MetricsAddr != "" {
		srv := &http.Server{
			Addr:    conf.MetricsAddr,
			Handler: newMetricsHTTP(),
		}
		go func() {
			logger.Infof("Serving metrics on %s", conf.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	runErr := chain.Run(ctx)
	if errors.Cause(runErr) == context.Canceled {
		logger.Warnf("Chain interrupted: %v", runErr)
		runErr = nil
		if conf.Checkpoint != "" {
			if err := chain.WriteCheckpoint(conf.Checkpoint); err != nil {
				return err
			}
		}
	}
	if err := trees.Flush(); err != nil {
		return errors.Wrap(err, "flush tree log")
	}
	if runErr != nil {
		return runErr
	}

	if conf.OperatorLog != "" {
		if err := writeOperatorLog(conf.OperatorLog, chain); err != nil {
			return err
		}
	}

	return tally.Write(out)
}

func writeOperatorLog(path string, chain *mcmc.Chain) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create operator log")
	}
	defer f.Close()
	return chain.Schedule().WriteOperatorRates(f)
}
