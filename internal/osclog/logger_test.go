package osclog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_VerboseSetsDebugLevel(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, New(true).GetLevel())
}

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	require.Equal(t, logrus.InfoLevel, New(false).GetLevel())
}

func TestDiscard_WritesNothingObservable(t *testing.T) {
	l := Discard()
	require.NotPanics(t, func() {
		l.Info("this should go nowhere")
	})
}
