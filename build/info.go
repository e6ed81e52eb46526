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

// Package build holds the release information of the binary.
package build

import (
	"fmt"
	"runtime"
	"time"
)

// TimeFormat is the reference format of the release date.
const TimeFormat = time.RFC3339

var (
	version  = "dev"
	commit   = "none"
	date     = "unknown"
	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// Info stores the build information
type Info struct {
	GoVersion string
	Version   string
	Commit    string
	Time      string
	Platform  string
}

// Short returns a pretty printed build and version summary.
func (i Info) Short() string {
	return fmt.Sprintf("phycoeval %s (commit %s, built %s, %s %s)",
		i.Version, i.Commit, i.Time, i.Platform, i.GoVersion)
}

// GoTime parses the release date, returning the zero time when it is not
// a valid date.
func (i Info) GoTime() time.Time {
	val, err := time.Parse(TimeFormat, i.Time)
	if err != nil {
		return time.Time{}
	}
	return val
}

// Set records the release information, usually injected by the linker
// into package main.
func Set(v, c, d string) {
	version, commit, date = v, c, d
}

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   version,
		Commit:    commit,
		Time:      date,
		Platform:  platform,
	}
}
