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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/aws/aws-sdk-go/service/kinesisvideo"

	"github.com/seqmedia/blockmux"
)

// Metadata tag names attached to fragments by Kinesis Video Streams.
const (
	TagNameFragmentNumber     = "AWS_KINESISVIDEO_FRAGMENT_NUMBER"
	TagNameServerTimestamp    = "AWS_KINESISVIDEO_SERVER_TIMESTAMP"
	TagNameProducerTimestamp  = "AWS_KINESISVIDEO_PRODUCER_TIMESTAMP"
	TagNameExceptionErrorCode = "AWS_KINESISVIDEO_EXCEPTION_ERROR_CODE"
	TagNameExceptionMessage   = "AWS_KINESISVIDEO_EXCEPTION_MESSAGE"
)

type StartSelectorType string

const (
	StartSelectorTypeNow               StartSelectorType = "NOW"
	StartSelectorTypeEarliest          StartSelectorType = "EARLIEST"
	StartSelectorTypeFragmentNumber    StartSelectorType = "FRAGMENT_NUMBER"
	StartSelectorTypeProducerTimestamp StartSelectorType = "PRODUCER_TIMESTAMP"
	StartSelectorTypeServerTimestamp   StartSelectorType = "SERVER_TIMESTAMP"
	StartSelectorTypeContinuationToken StartSelectorType = "CONTINUATION_TOKEN"
)

// Consumer reads blocks back from one Kinesis Video stream over GET_MEDIA.
type Consumer struct {
	streamID  StreamID
	endpoint  string
	signer    *v4.Signer
	httpCli   http.Client
	cliConfig *client.Config
}

func (c *Client) Consumer(streamID StreamID) (*Consumer, error) {
	ep, err := c.kv.GetDataEndpoint(
		&kinesisvideo.GetDataEndpointInput{
			APIName:    aws.String("GET_MEDIA"),
			StreamName: streamID.StreamName(),
			StreamARN:  streamID.StreamARN(),
		},
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		streamID:  streamID,
		endpoint:  *ep.DataEndpoint + "/getMedia",
		signer:    c.signer,
		cliConfig: c.cliConfig,
	}, nil
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// GetMedia opens the stream and feeds decoded blocks into ch and fragment
// tags into chTag until the stream ends or the returned Closer is called.
// Both channels are closed when the stream ends. Close reports decode
// failures collected while streaming.
func (c *Consumer) GetMedia(ch chan<- *TimedBlock, chTag chan<- *Tag, opts ...GetMediaOption) (io.Closer, error) {
	options := &GetMediaOptions{
		startSelector: StartSelector{
			StartSelectorType: StartSelectorTypeNow,
		},
	}
	for _, o := range opts {
		o(options)
	}

	body, err := json.Marshal(
		&GetMediaBody{
			StartSelector: options.startSelector,
			StreamName:    c.streamID.StreamName(),
			StreamARN:     c.streamID.StreamARN(),
		})
	if err != nil {
		return nil, err
	}
	bodyReader := bytes.NewReader(body)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bodyReader)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-type", "application/json")

	_, err = c.signer.Presign(
		req, bodyReader,
		c.cliConfig.SigningName, c.cliConfig.SigningRegion,
		10*time.Minute, time.Now(),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	res, err := c.httpCli.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if res.StatusCode != 200 {
		body, err := io.ReadAll(res.Body)
		cancel()
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%d: %s", res.StatusCode, string(body))
	}

	chBlock := make(chan ebml.Block)
	chTimecode := make(chan uint64)
	chWireTag := make(chan *Tag, 1)

	var mu sync.Mutex
	var errs multiError
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer func() {
			close(ch)
			wg.Done()
		}()
		var baseTime uint64
		for {
			select {
			case baseTime = <-chTimecode:
			case wb, ok := <-chBlock:
				if !ok {
					return
				}
				tb, err := blockFromWire(baseTime, wb)
				if err != nil {
					mu.Lock()
					errs.Add(fmt.Errorf("decoding block at timecode %d: %w", baseTime, err))
					mu.Unlock()
					blockmux.Logger().Warnf("Dropping undecodable block (streamID:%s err:%v)", c.streamID, err)
					continue
				}
				ch <- tb
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer func() {
			close(chTag)
			wg.Done()
		}()
		for t := range chWireTag {
			chTag <- t
		}
	}()

	data := &Container{}
	data.Segment.Cluster.Timecode = chTimecode
	data.Segment.Cluster.SimpleBlock = chBlock
	data.Segment.Tags.Tag = chWireTag

	var errUnmarshal error
	wg.Add(1)
	go func() {
		defer func() {
			close(chBlock)
			close(chWireTag)
			wg.Done()
		}()
		errUnmarshal = ebml.Unmarshal(res.Body, data)
	}()

	return closerFunc(func() error {
		cancel()
		wg.Wait()
		res.Body.Close()
		mu.Lock()
		defer mu.Unlock()
		errs.Add(errUnmarshal)
		if len(errs) == 0 {
			return nil
		}
		return errs
	}), nil
}

type StartSelector struct {
	AfterFragmentNumber string `json:",omitempty"`
	ContinuationToken   string `json:",omitempty"`
	StartSelectorType   StartSelectorType
	StartTimestamp      int `json:",omitempty"`
}

type GetMediaBody struct {
	StartSelector StartSelector
	StreamARN     *string `json:",omitempty"`
	StreamName    *string `json:",omitempty"`
}

type GetMediaOptions struct {
	startSelector StartSelector
}

type GetMediaOption func(*GetMediaOptions)

func WithStartSelectorNow() GetMediaOption {
	return func(options *GetMediaOptions) {
		options.startSelector = StartSelector{
			StartSelectorType: StartSelectorTypeNow,
		}
	}
}

func WithStartSelectorProducerTimestamp(timestamp time.Time) GetMediaOption {
	return func(options *GetMediaOptions) {
		options.startSelector = StartSelector{
			StartSelectorType: StartSelectorTypeProducerTimestamp,
			StartTimestamp:    int(timestamp.Unix()),
		}
	}
}

func WithStartSelectorContinuationToken(token string) GetMediaOption {
	return func(options *GetMediaOptions) {
		options.startSelector = StartSelector{
			StartSelectorType: StartSelectorTypeContinuationToken,
			ContinuationToken: token,
		}
	}
}
