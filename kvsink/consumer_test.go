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

package kvsink_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/seqmedia/blockmux/kvsink"
	"github.com/seqmedia/blockmux/kvsmock"
)

func TestConsumer(t *testing.T) {
	server := kvsmock.NewKinesisVideoServer()
	defer server.Close()

	cfg := &aws.Config{
		Credentials: credentials.NewStaticCredentials("key", "secret", "token"),
		Region:      aws.String("ap-northeast-1"),
		Endpoint:    &server.URL,
	}
	cli, err := kvsink.New(session.Must(session.NewSession(cfg)), cfg)
	if err != nil {
		t.Fatalf("Failed to create new client: %v", err)
	}

	con, err := cli.Consumer(kvsink.StreamName("test-stream"))
	if err != nil {
		t.Fatalf("Failed to create new consumer: %v", err)
	}

	testFragments := []kvsmock.FragmentTest{
		{
			Cluster: kvsmock.ClusterTest{
				Timecode:    1000,
				SimpleBlock: []ebml.Block{newWireBlock(0), newWireBlock(100), newWireBlock(200)},
			},
			Tags: newTags([]kvsink.SimpleTag{{TagName: "TEST_TAG", TagString: "1"}}),
		},
		{
			Cluster: kvsmock.ClusterTest{
				Timecode:    2000,
				SimpleBlock: []ebml.Block{newWireBlock(0), newWireBlock(100)},
			},
			Tags: newTags([]kvsink.SimpleTag{{TagName: "TEST_TAG", TagString: "2"}}),
		},
	}
	for _, f := range testFragments {
		server.RegisterFragment(f)
	}

	ch := make(chan *kvsink.TimedBlock)
	var blocks []*kvsink.TimedBlock
	chTag := make(chan *kvsink.Tag)
	var tags []kvsink.SimpleTag
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		defer cancel()
		for {
			select {
			case b, ok := <-ch:
				if !ok {
					continue
				}
				blocks = append(blocks, b)
			case tag, ok := <-chTag:
				if !ok {
					return
				}
				tags = append(tags, tag.SimpleTag...)
			}
		}
	}()

	closer, err := con.GetMedia(ch, chTag,
		kvsink.WithStartSelectorProducerTimestamp(time.Unix(1001, 0)),
	)
	if err != nil {
		t.Fatalf("Failed to run GetMedia: %v", err)
	}

	<-ctx.Done()
	if ctx.Err() == context.DeadlineExceeded {
		t.Fatalf("GetMedia timed out")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Failed to close stream: %v", err)
	}

	// Only the second fragment is past the start selector.
	expected := []struct {
		timestamp uint64
		frames    [][]byte
	}{
		{timestamp: 2000, frames: testData},
		{timestamp: 2100, frames: testData},
	}
	if n := len(blocks); n != len(expected) {
		t.Fatalf("Expected %d blocks, got %d", len(expected), n)
	}
	for i, e := range expected {
		if blocks[i].Timestamp != e.timestamp {
			t.Errorf("Block %d: expected timestamp %d, got %d", i, e.timestamp, blocks[i].Timestamp)
		}
		if tn := blocks[i].Block.TrackNum(); tn != 1 {
			t.Errorf("Block %d: expected track 1, got %d", i, tn)
		}
		if n := blocks[i].Block.NumberFrames(); n != len(e.frames) {
			t.Fatalf("Block %d: expected %d frames, got %d", i, len(e.frames), n)
		}
		for j, frame := range e.frames {
			if !reflect.DeepEqual(frame, blocks[i].Block.GetBuffer(j).Bytes()) {
				t.Errorf("Block %d frame %d differs", i, j)
			}
		}
	}

	expectedTags := []kvsink.SimpleTag{
		{TagName: "TEST_TAG", TagString: "2"},
	}
	if !reflect.DeepEqual(expectedTags, tags) {
		t.Errorf("Unexpected Tags\n expected:%+v\n actual:%+v", expectedTags, tags)
	}
}
