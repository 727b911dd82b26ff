// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/vigil/pkg/capture"
	"github.com/Thermoquad/vigil/pkg/mmwave"
	"github.com/Thermoquad/vigil/pkg/session"
)

func corruptFrame() []byte {
	f := presenceFrame(1)
	f[len(f)-3]++
	return f
}

// ============================================================
// packet_test
// ============================================================

func TestWaitForFrame(t *testing.T) {
	stream := append([]byte{0x00, 0xFF, 0x53}, corruptFrame()...)
	stream = append(stream, fallFrame()...)

	result, err := waitForFrame(capture.NewReplay([]capture.Record{
		{Data: stream[:7]},
		{Data: stream[7:]},
	}))
	require.NoError(t, err)
	assert.Equal(t, fallFrame(), result.frame)
	assert.Equal(t, byte(mmwave.CmdFall), result.payload[0])
	assert.Equal(t, 1, result.rejected)
}

func TestWaitForFrame_EOF(t *testing.T) {
	result, err := waitForFrame(capture.NewReplay([]capture.Record{{Data: corruptFrame()}}))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, result.rejected)
}

// ============================================================
// raw_log
// ============================================================

func TestLogFrames(t *testing.T) {
	stream := append(presenceFrame(1), corruptFrame()...)

	var out bytes.Buffer
	err := logFrames(&out, capture.NewReplay([]capture.Record{{Data: stream}}))
	assert.ErrorIs(t, err, io.EOF)

	text := out.String()
	assert.Contains(t, text, mmwave.FormatHex(presenceFrame(1)))
	assert.Contains(t, text, "  PRESENCE: ON\n")
	assert.Contains(t, text, "[ERROR] "+mmwave.FormatHex(corruptFrame()))
	assert.Contains(t, text, "checksum")
}

// ============================================================
// identify
// ============================================================

func TestCollectIdentities(t *testing.T) {
	events := make(chan session.Message, 8)
	events <- session.Message{Port: "A", Event: mmwave.ProductInfo{Field: mmwave.ProductModel, Value: "R60AFD1"}}
	events <- session.Message{Port: "A", Event: mmwave.ProductInfo{Field: mmwave.ProductID, Value: "0001"}}
	events <- session.Message{Port: "A", Event: mmwave.PresenceState{On: true}}
	events <- session.Message{Port: "A", Event: mmwave.ProductInfo{Field: mmwave.ProductHardwareModel, Value: "G60FL"}}
	events <- session.Message{Port: "A", Event: mmwave.ProductInfo{Field: mmwave.ProductFirmwareVersion, Value: "G60FL_1.2"}}
	events <- session.Message{Port: "A", Event: mmwave.WorkingStatus{State: mmwave.WorkInited}}

	ids := map[string]*radarIdentity{
		"A": {product: make(map[mmwave.ProductField]string)},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	collectIdentities(ctx, events, ids)

	a := ids["A"]
	assert.True(t, a.complete())
	assert.Equal(t, "R60AFD1", a.product[mmwave.ProductModel])
	assert.Equal(t, "G60FL_1.2", a.product[mmwave.ProductFirmwareVersion])
	require.NotNil(t, a.status)
	assert.Equal(t, mmwave.WorkInited, *a.status)
	assert.NoError(t, ctx.Err(), "returns as soon as every identity is complete")
}

func TestCollectIdentities_Timeout(t *testing.T) {
	events := make(chan session.Message, 1)
	events <- session.Message{Port: "B", Event: mmwave.ProductInfo{Field: mmwave.ProductModel, Value: "R60AFD1"}}

	ids := map[string]*radarIdentity{
		"A": {product: make(map[mmwave.ProductField]string)},
		"B": {product: make(map[mmwave.ProductField]string)},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	collectIdentities(ctx, events, ids)

	assert.False(t, ids["A"].answered())
	assert.True(t, ids["B"].answered())
	assert.False(t, ids["B"].complete())
}
