// Copyright 2026 Seqmedia Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kvsink

import (
	"reflect"
	"strings"
	"testing"
)

func TestFragmentEvent(t *testing.T) {
	t.Run("PersistedEvents", func(t *testing.T) {
		input := `{"EventType":"PERSISTED","FragmentTimecode":1000,"FragmentNumber":"123"}` +
			`{"EventType":"PERSISTED","FragmentTimecode":2000,"FragmentNumber":"124"}`
		fes, err := parseFragmentEvent(strings.NewReader(input))
		if err != nil {
			t.Fatal(err)
		}
		expected := []FragmentEvent{
			{EventType: "PERSISTED", FragmentTimecode: 1000, FragmentNumber: "123"},
			{EventType: "PERSISTED", FragmentTimecode: 2000, FragmentNumber: "124"},
		}
		if !reflect.DeepEqual(expected, fes) {
			t.Errorf("Expected events %+v, got %+v", expected, fes)
		}
		if err := fes[0].AsError(); err != nil {
			t.Errorf("Persisted event must not be an error, got '%v'", err)
		}
	})
	t.Run("ErrorEvent", func(t *testing.T) {
		input := `{"EventType":"ERROR","FragmentTimecode":12345,"FragmentNumber":"91343852333754009371412493862204112772176002064","ErrorId":5000,"ErrorCode":"DUMMY_ERROR"}`
		fes, err := parseFragmentEvent(strings.NewReader(input))
		if err != nil {
			t.Fatal(err)
		}
		if n := len(fes); n != 1 {
			t.Fatalf("Expected 1 FragmentEvent, got %d", n)
		}
		expected := `fragment event error: { Timecode: 12345, FragmentNumber: 91343852333754009371412493862204112772176002064, ErrorId: 5000, ErrorCode: "DUMMY_ERROR" }`
		if s := fes[0].AsError().Error(); s != expected {
			t.Errorf("Expected error string:\n%s\ngot:\n%s", expected, s)
		}
	})
	t.Run("ParseError", func(t *testing.T) {
		fes, err := parseFragmentEvent(strings.NewReader("{"))
		if err == nil {
			t.Fatal("Expected an error for truncated input")
		}
		if n := len(fes); n != 0 {
			t.Fatalf("Expected 0 FragmentEvent, got %d", n)
		}
	})
}
