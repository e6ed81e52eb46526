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
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-msgpack/codec"
	"github.com/pkg/errors"

	"github.com/bbva/phycoeval/operator"
)

var handler *codec.MsgpackHandle

func init() {
	handler = new(codec.MsgpackHandle)
}

// Checkpoint is everything needed to continue a chain where it stopped.
type Checkpoint struct {
	RunID     string
	Iteration int
	Seed      uint64
	Generator []byte
	Tree      []byte
	Operators []operator.Tallies
}

// Decode reverses the encode operation on a byte slice input
func decodeMsgPack(buf []byte, out interface{}) error {
	dec := codec.NewDecoderBytes(buf, handler)
	return dec.Decode(out)
}

// Encode writes an encoded object to a new bytes buffer
func encodeMsgPack(in interface{}) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, handler)
	if err := enc.Encode(in); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteCheckpoint replaces the file at path with cp.
func WriteCheckpoint(path string, cp *Checkpoint) error {
	buf, err := encodeMsgPack(cp)
	if err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write checkpoint")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close checkpoint")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replace checkpoint")
}

func ReadCheckpoint(path string) (*Checkpoint, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read checkpoint")
	}
	cp := new(Checkpoint)
	if err := decodeMsgPack(buf, cp); err != nil {
		return nil, errors.Wrap(err, "decode checkpoint")
	}
	return cp, nil
}
