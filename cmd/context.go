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
	"fmt"

	"github.com/octago/sflags/gen/gpflag"
	"github.com/spf13/pflag"

	"github.com/bbva/phycoeval/log"
)

// configFlags binds the fields of conf to flags and stores conf in the
// command context under key.
func configFlags(key string, conf interface{}, flags *pflag.FlagSet) context.Context {
	err := gpflag.ParseTo(conf, flags)
	if err != nil {
		panic(fmt.Sprintf("Unable to parse %s flags: %v", key, err))
	}
	return context.WithValue(Ctx, k(key), conf)
}

// newLogger builds the command logger and makes it the process default.
func newLogger(name, level string) log.Logger {
	logger := log.New(&log.LoggerOptions{
		Name:            name,
		IncludeLocation: true,
		Level:           log.LevelFromString(level),
		Output:          log.DefaultOutput,
		TimeFormat:      log.DefaultTimeFormat,
	})
	log.SetDefault(logger)
	return logger
}
