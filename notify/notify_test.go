package notify

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/pbis/authclient/lib/logger"
)

func TestLogEmitterLevels(t *testing.T) {
	log, hook := test.NewNullLogger()
	ctx := logger.WithLogger(context.Background(), log)

	LogEmitter{}.Emit(ctx, Notification{Message: "Session expired. Please login again.", Type: TypeError})
	LogEmitter{}.Emit(ctx, Notification{Message: "slow down", Type: TypeWarning})
	LogEmitter{}.Emit(ctx, Notification{Message: "saved", Type: TypeSuccess})

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	require.Equal(t, logrus.ErrorLevel, entries[0].Level)
	require.Equal(t, "Session expired. Please login again.", entries[0].Message)
	require.Equal(t, logrus.WarnLevel, entries[1].Level)
	require.Equal(t, logrus.InfoLevel, entries[2].Level)
	require.Equal(t, "success", entries[2].Data["notification"])
}

func TestEmitterFunc(t *testing.T) {
	var got []Notification
	var e Emitter = EmitterFunc(func(_ context.Context, n Notification) { got = append(got, n) })
	e.Emit(context.Background(), Notification{Message: "hi", Type: TypeSuccess})
	Discard.Emit(context.Background(), Notification{Message: "dropped"})
	require.Equal(t, []Notification{{Message: "hi", Type: TypeSuccess}}, got)
}
