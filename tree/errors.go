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

package tree

import "github.com/pkg/errors"

var (
	ErrHeightIndex   = errors.New("node height index out of range")
	ErrInvalidHeight = errors.New("invalid node height")
	ErrInvalidTree   = errors.New("invalid tree")
	ErrTooFewLeaves  = errors.New("too few leaves")
	ErrFixedRoot     = errors.New("root height is fixed")
	ErrParse         = errors.New("malformed tree string")
	ErrNoSnapshot    = errors.New("no stored state to restore")
)
