// Package remoteworker implements the master-side HTTP client for the
// 5-step remote benchmark protocol (spec.md §4.5): preparephase,
// startphase, status polling, benchresult, and interruptphase. The wire
// types in this file are shared with internal/httpservice, which
// implements the service side of the same protocol.
package remoteworker

import "github.com/TheEntropyCollective/storagebench/internal/latency"

// InfoResponse answers GET /info.
type InfoResponse struct {
	Version string `json:"version"`
}

// ProtocolVersionResponse answers GET /protocolversion.
type ProtocolVersionResponse struct {
	ProtocolVersion int `json:"protocolversion"`
}

// StatusResponse answers GET /status: the service's live view of the phase
// in progress, polled by the master between startphase and the phase
// finishing.
type StatusResponse struct {
	Phase              string `json:"phase"`
	BenchID            string `json:"benchid"`
	NumWorkersDone     int    `json:"numworkersdone"`
	NumWorkersDoneErr  int    `json:"numworkersdoneerr"`
	NumWorkers         int    `json:"numworkers"`
	EntriesDone        int64  `json:"entriesdone"`
	BytesDone          int64  `json:"bytesdone"`
	IopsDone           int64  `json:"iopsdone"`
	RWMixReadBytesDone int64  `json:"rwmixreadbytesdone,omitempty"`
	RWMixReadIopsDone  int64  `json:"rwmixreadiopsdone,omitempty"`
}

// ResultResponse answers GET /benchresult, the final per-phase report a
// service sends once every worker is done.
type ResultResponse struct {
	Phase              string             `json:"phase"`
	BenchID            string             `json:"benchid"`
	ErrorHistory       string             `json:"errorhistory"`
	EntriesDone        int64              `json:"entriesdone"`
	BytesDone          int64              `json:"bytesdone"`
	IopsDone           int64              `json:"iopsdone"`
	RWMixReadBytesDone int64              `json:"rwmixreadbytesdone,omitempty"`
	RWMixReadIopsDone  int64              `json:"rwmixreadiopsdone,omitempty"`
	StonewallEntries   int64              `json:"stonewallentries"`
	StonewallBytes     int64              `json:"stonewallbytes"`
	StonewallIops      int64              `json:"stonewalliops"`
	ElapsedUs          uint64             `json:"elapsedus"`
	FirstDoneCPU       int                `json:"stonewallcpuutil"`
	LastDoneCPU        int                `json:"lastcpuutil"`
	Latency            latency.Serialized `json:"latency"`
}
