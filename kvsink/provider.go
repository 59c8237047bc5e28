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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/at-wat/ebml-go"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
	"github.com/aws/aws-sdk-go/service/kinesisvideo"
	"github.com/google/uuid"

	"github.com/seqmedia/blockmux"
)

type FragmentTimecodeType string

const (
	FragmentTimecodeTypeRelative FragmentTimecodeType = "RELATIVE"
	FragmentTimecodeTypeAbsolute FragmentTimecodeType = "ABSOLUTE"
)

// Fragment rotation thresholds, in timescale ticks relative to the fragment
// base timestamp. A new connection is prepared early so switching does not
// stall the block stream.
const (
	fragmentPrepareThreshold = 8000
	fragmentSwitchThreshold  = 9000
)

var immediateTimeout chan time.Time

func init() {
	immediateTimeout = make(chan time.Time)
	close(immediateTimeout)
}

// Provider streams blocks to one Kinesis Video stream, rotating PUT_MEDIA
// fragments as the block timestamps advance.
type Provider struct {
	streamID  StreamID
	endpoint  string
	signer    *v4.Signer
	cliConfig *client.Config
	tracks    []TrackEntry

	bufferPool sync.Pool
}

func (c *Client) Provider(streamID StreamID, tracks []TrackEntry) (*Provider, error) {
	ep, err := c.kv.GetDataEndpoint(
		&kinesisvideo.GetDataEndpointInput{
			APIName:    aws.String("PUT_MEDIA"),
			StreamName: streamID.StreamName(),
			StreamARN:  streamID.StreamARN(),
		},
	)
	if err != nil {
		return nil, err
	}
	return &Provider{
		streamID:  streamID,
		endpoint:  *ep.DataEndpoint + "/putMedia",
		signer:    c.signer,
		cliConfig: c.cliConfig,
		tracks:    tracks,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 1024))
			},
		},
	}, nil
}

type PutMediaOptions struct {
	segmentUID             []byte
	title                  string
	fragmentTimecodeType   FragmentTimecodeType
	producerStartTimestamp string
	connectionTimeout      time.Duration
	httpClient             http.Client
	tags                   func() []SimpleTag
	onError                func(error)
	retryCount             int
	retryIntervalBase      time.Duration
}

type PutMediaOption func(*PutMediaOptions)

// fragmentCh carries one fragment's cluster as channels consumed by the
// streaming marshaller.
type fragmentCh struct {
	Timecode chan uint64
	Block    chan ebml.Block
	Tag      chan *Tag
}

type connection struct {
	*fragmentCh
	baseTimestamp uint64
	onceClose     sync.Once
	onceInit      sync.Once
	timeout       <-chan time.Time
}

func newConnection() *connection {
	return &connection{
		fragmentCh: &fragmentCh{
			Timecode: make(chan uint64, 1),
			Block:    make(chan ebml.Block),
			Tag:      make(chan *Tag, 1),
		},
		timeout: immediateTimeout,
	}
}

func (c *connection) initialize(baseTimestamp uint64, opts *PutMediaOptions) {
	c.onceInit.Do(func() {
		c.baseTimestamp = baseTimestamp
		c.Timecode <- c.baseTimestamp
		close(c.Timecode)

		if opts.tags != nil {
			c.Tag <- &Tag{SimpleTag: opts.tags()}
		}
		close(c.Tag)

		c.timeout = time.After(opts.connectionTimeout)
	})
}

func (c *connection) close() {
	// Ensure Timecode and Tag channels are closed
	c.initialize(0, &PutMediaOptions{})

	c.onceClose.Do(func() {
		close(c.Block)
	})
}

// PutMedia consumes blocks from ch until it is closed, grouping them into
// fragments and uploading each fragment over its own connection. Fragment
// acknowledgements are delivered to chResp, which is closed when all uploads
// finished. The returned error aggregates the upload failures also reported
// through OnError.
func (p *Provider) PutMedia(ch chan *TimedBlock, chResp chan FragmentEvent, opts ...PutMediaOption) error {
	options := &PutMediaOptions{
		title:                  "kvsink.Provider",
		fragmentTimecodeType:   FragmentTimecodeTypeRelative,
		producerStartTimestamp: "0",
		connectionTimeout:      15 * time.Second,
		onError:                func(err error) { blockmux.Logger().Error(err) },
	}
	for _, o := range opts {
		o(options)
	}

	chFragment := make(chan *fragmentCh)
	go func() {
		var conn, nextConn *connection
		defer func() {
			if conn != nil {
				conn.close()
			}
			if nextConn != nil {
				nextConn.close()
			}
			close(chFragment)
		}()

		lastAbsTime := uint64(0)
		cleanConnections := func() {
			conn.close()
			conn = nil
			if nextConn != nil {
				nextConn.close()
				nextConn = nil
			}
			lastAbsTime = 0
		}
		for {
			var timeout <-chan time.Time
			if conn != nil {
				timeout = conn.timeout
			}
			select {
			case tb, ok := <-ch:
				if !ok {
					return
				}
				absTime := tb.Timestamp
				if lastAbsTime != 0 {
					diff := int64(absTime - lastAbsTime)
					if diff < 0 || diff > math.MaxInt16 {
						blockmux.Logger().Warnf(
							"Invalid timestamp (streamID:%s timestamp:%d last:%d diff:%d)",
							p.streamID, absTime, lastAbsTime, diff,
						)
						continue
					}
				}

				if conn == nil || (nextConn == nil && int16(absTime-conn.baseTimestamp) > fragmentPrepareThreshold) {
					blockmux.Logger().Debugf("Prepare next connection (streamID:%s)", p.streamID)
					nextConn = newConnection()
					chFragment <- nextConn.fragmentCh
				}
				if conn == nil || int16(absTime-conn.baseTimestamp) > fragmentSwitchThreshold {
					blockmux.Logger().Debugf("Switch to next connection (streamID:%s absTime:%d)", p.streamID, absTime)
					if conn != nil {
						conn.close()
					}
					conn = nextConn
					conn.initialize(absTime, options)
					nextConn = nil
				}
				wb, err := wireBlock(tb.Block, int16(absTime-conn.baseTimestamp))
				if err != nil {
					options.onError(fmt.Errorf("encoding block at %d: %w", absTime, err))
					continue
				}
				timeout = conn.timeout
				select {
				case conn.Block <- wb:
					lastAbsTime = absTime
				case <-timeout:
					blockmux.Logger().Warnf("Sending block timed out, clean connections (streamID:%s)", p.streamID)
					cleanConnections()
				}
			case <-timeout:
				blockmux.Logger().Warnf("Receiving block timed out, clean connections (streamID:%s)", p.streamID)
				cleanConnections()
			}
		}
	}()

	return p.putSegments(chFragment, chResp, options)
}

func (p *Provider) putSegments(ch chan *fragmentCh, chResp chan FragmentEvent, opts *PutMediaOptions) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs multiError
	fail := func(err error) {
		mu.Lock()
		errs.Add(err)
		mu.Unlock()
		opts.onError(err)
	}
	defer func() {
		wg.Wait()
		close(chResp)
	}()

	for seg := range ch {
		seg := seg
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.putMedia(seg, opts)
			if res != nil {
				defer res.Close()
			}
			if err != nil {
				fail(err)
				return
			}

			fes, err := parseFragmentEvent(res)
			if err != nil {
				fail(err)
				return
			}
			for _, fe := range fes {
				if err := fe.AsError(); err != nil {
					fail(err)
					continue
				}
				chResp <- fe
			}
		}()
	}
	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (p *Provider) putMedia(seg *fragmentCh, opts *PutMediaOptions) (io.ReadCloser, error) {
	segmentUID := opts.segmentUID
	if segmentUID == nil {
		var err error
		segmentUID, err = uuid.New().MarshalBinary()
		if err != nil {
			return nil, err
		}
	}

	data := struct {
		Header  EBMLHeader `ebml:"EBML"`
		Segment Segment    `ebml:",size=unknown"`
	}{
		Header: newEBMLHeader(),
		Segment: Segment{
			Info: Info{
				SegmentUID:    segmentUID,
				TimecodeScale: TimescaleTicks,
				Title:         opts.title,
				MuxingApp:     "kvsink.Provider",
				WritingApp:    "kvsink.Provider",
			},
			Tracks: Tracks{
				TrackEntry: p.tracks,
			},
			Cluster: Cluster{
				Timecode:    seg.Timecode,
				SimpleBlock: seg.Block,
			},
			Tags: Tags{
				Tag: seg.Tag,
			},
		},
	}

	r, wOut := io.Pipe()
	w := io.Writer(wOut)
	var backup *bytes.Buffer
	if opts.retryCount > 0 {
		// Take a complete copy of the fragment even if the first upload
		// breaks the pipe mid-marshal.
		backup = p.bufferPool.Get().(*bytes.Buffer)
		defer p.bufferPool.Put(backup)
		backup.Reset()
		w = io.MultiWriter(&errLatchWriter{Writer: wOut}, backup)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctxErr := &errContext{Context: ctx}
	go func() {
		defer func() {
			cancel()
			wOut.CloseWithError(io.EOF)
		}()

		buf := bufio.NewWriter(w)
		if err := ebml.Marshal(&data, buf); err != nil {
			ctxErr.err = fmt.Errorf("ebml marshalling: %w", err)
			return
		}
		if err := buf.Flush(); err != nil {
			ctxErr.err = fmt.Errorf("buffer flushing: %w", err)
			return
		}
	}()
	ret, err := p.putMediaRaw(ctxErr, r, opts)
	if err != nil && opts.retryCount > 0 {
		interval := opts.retryIntervalBase
		for i := 0; i < opts.retryCount; i++ {
			time.Sleep(interval)

			blockmux.Logger().Infof("Retrying PutMedia (streamID:%s, retryCount:%d, err:%v)", p.streamID, i, err)
			ret, err = p.putMediaRaw(ctxErr, bytes.NewReader(backup.Bytes()), opts)
			if err == nil {
				break
			}
			interval *= 2
		}
	}
	return ret, err
}

type errContext struct {
	context.Context
	err error
}

func (c *errContext) Err() error {
	return c.err
}

func (p *Provider) putMediaRaw(ctx context.Context, r io.Reader, opts *PutMediaOptions) (io.ReadCloser, error) {
	req, err := http.NewRequest("POST", p.endpoint, r)
	if err != nil {
		return nil, fmt.Errorf("creating http request: %w", err)
	}
	if p.streamID.StreamName() != nil {
		req.Header.Set("x-amzn-stream-name", *p.streamID.StreamName())
	}
	if p.streamID.StreamARN() != nil {
		req.Header.Set("x-amzn-stream-arn", *p.streamID.StreamARN())
	}
	req.Header.Set("x-amzn-fragment-timecode-type", string(opts.fragmentTimecodeType))
	req.Header.Set("x-amzn-producer-start-timestamp", opts.producerStartTimestamp)

	_, err = p.signer.Presign(
		req, bytes.NewReader([]byte{}),
		p.cliConfig.SigningName, p.cliConfig.SigningRegion,
		10*time.Minute, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("presigning request: %w", err)
	}
	res, err := opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending http request: %w", err)
	}
	if res.StatusCode != 200 {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("reading http response: %w", err)
		}
		return nil, fmt.Errorf("%d: %s", res.StatusCode, string(body))
	}
	<-ctx.Done()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res.Body, nil
}

func WithSegmentUID(segmentUID []byte) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.segmentUID = segmentUID
	}
}

func WithTitle(title string) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.title = title
	}
}

func WithFragmentTimecodeType(fragmentTimecodeType FragmentTimecodeType) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.fragmentTimecodeType = fragmentTimecodeType
	}
}

func WithProducerStartTimestamp(producerStartTimestamp time.Time) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.producerStartTimestamp = ToTimestamp(producerStartTimestamp)
	}
}

func WithConnectionTimeout(timeout time.Duration) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.connectionTimeout = timeout
	}
}

func WithHttpClient(client http.Client) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.httpClient = client
	}
}

func WithTags(tags func() []SimpleTag) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.tags = tags
	}
}

func OnError(onError func(error)) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.onError = onError
	}
}

func WithRetry(count int, intervalBase time.Duration) PutMediaOption {
	return func(p *PutMediaOptions) {
		p.retryCount = count
		p.retryIntervalBase = intervalBase
	}
}
