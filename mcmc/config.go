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

package mcmc

import (
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var ErrConfig = errors.New("invalid chain configuration")

type Config struct {
	// general conf
	Log        string `desc:"Set log level to info, error or debug"`
	ConfigFile string `desc:"Optional YAML, TOML or JSON file overriding flag values"`

	// model conf
	Tree       string  `desc:"Starting tree in bracketed notation"`
	Leaves     int     `desc:"Number of leaves of the comb starting tree when no tree is given"`
	RootHeight float64 `desc:"Root height of the comb starting tree"`
	FixRoot    bool    `desc:"Keep the root height fixed"`
	RootPrior  string  `desc:"Root height prior: exponential:<rate>, gamma:<shape>,<scale> or uniform:<min>,<max>"`

	// chain conf
	Seed               uint64 `desc:"Random seed, 0 picks one from the clock"`
	Iterations         int    `desc:"Number of MCMC iterations"`
	SampleFrequency    int    `desc:"Iterations between samples"`
	HeightMovesPerJump int    `desc:"Moves of each height operator after every split-lump move"`

	// operator conf
	SplitLumpWeight        float64 `desc:"Weight of the split-lump reversible-jump operator"`
	NodeHeightScalerWeight float64 `desc:"Weight of the node height scaler"`
	NodeHeightMoverWeight  float64 `desc:"Weight of the node height mover"`
	RootHeightScalerWeight float64 `desc:"Weight of the root height scaler"`
	TreeScalerWeight       float64 `desc:"Weight of the tree scaler"`
	Scale                  float64 `desc:"Initial scale of the scaling operators"`
	Window                 float64 `desc:"Initial window of the node height mover"`
	AutoOptimize           bool    `desc:"Tune operators towards the target acceptance"`
	AutoOptimizeDelay      int     `desc:"Attempts before an operator starts tuning"`

	// output conf
	TreeLog             string `desc:"Path of the sampled tree log"`
	OperatorLog         string `desc:"Path of the operator acceptance report"`
	Checkpoint          string `desc:"Path of the checkpoint file"`
	CheckpointFrequency int    `desc:"Iterations between checkpoints, 0 writes only at the end"`
	Resume              bool   `desc:"Resume from the checkpoint file"`
	MetricsAddr         string `desc:"Address to serve prometheus metrics on, empty disables it"`
}

func DefaultConfig() *Config {
	return &Config{
		Log:                    "info",
		Leaves:                 4,
		RootHeight:             1,
		FixRoot:                true,
		Iterations:             100000,
		SampleFrequency:        100,
		SplitLumpWeight:        1,
		NodeHeightScalerWeight: 1,
		NodeHeightMoverWeight:  1,
		Scale:                  0.5,
		Window:                 0.1,
		AutoOptimize:           true,
		AutoOptimizeDelay:      1000,
		TreeLog:                "trees.log",
	}
}

// Validate checks the fields a chain cannot start without.
func (c *Config) Validate() error {
	if c.Tree == "" && c.Leaves < 3 {
		return errors.Wrapf(ErrConfig, "a comb starting tree needs at least 3 leaves, got %d", c.Leaves)
	}
	if c.Tree == "" && !(c.RootHeight > 0) {
		return errors.Wrapf(ErrConfig, "root height must be positive, got %v", c.RootHeight)
	}
	if c.Iterations < 0 {
		return errors.Wrapf(ErrConfig, "negative number of iterations %d", c.Iterations)
	}
	if c.SampleFrequency < 1 {
		return errors.Wrapf(ErrConfig, "sample frequency must be positive, got %d", c.SampleFrequency)
	}
	if c.HeightMovesPerJump < 0 || c.CheckpointFrequency < 0 || c.AutoOptimizeDelay < 0 {
		return errors.Wrap(ErrConfig, "move counts and frequencies cannot be negative")
	}
	total := 0.0
	for _, w := range []float64{
		c.SplitLumpWeight,
		c.NodeHeightScalerWeight,
		c.NodeHeightMoverWeight,
		c.RootHeightScalerWeight,
		c.TreeScalerWeight,
	} {
		if w < 0 {
			return errors.Wrapf(ErrConfig, "negative operator weight %v", w)
		}
		total += w
	}
	if !(total > 0) {
		return errors.Wrap(ErrConfig, "every operator weight is zero")
	}
	if c.Resume && c.Checkpoint == "" {
		return errors.Wrap(ErrConfig, "resume needs a checkpoint path")
	}
	return nil
}

// LoadConfigFile reads a run file and fills the fields it leaves empty
// from base.
func LoadConfigFile(path string, base *Config) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrapf(err, "decode config file %s", path)
	}
	if base != nil {
		if err := mergo.Merge(conf, *base); err != nil {
			return nil, errors.Wrap(err, "merge config")
		}
	}
	return conf, nil
}
