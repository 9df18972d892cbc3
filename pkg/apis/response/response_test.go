package response

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"scadabridge/pkg/runtime/constant"
	"testing"
)

func TestMessages(t *testing.T) {
	assert.Equal(t, "Datos JSON no válidos", Message(ErrMalformedJSON))
	assert.Equal(t, "Acción no especificada", Message(ErrMissingAction))
	assert.Equal(t, "Dispositivo desconocido: oven", Message(ErrUnknownDevice("oven", nil)))
	assert.Equal(t, "Banda: no se puede ejecutar forward, sistema apagado", Message(ErrNotReady("Banda", "forward", nil)))
	assert.Equal(t, "Empacadora: PLC no conectado", Message(ErrDeviceUnavailable("Empacadora", nil)))
}

func TestCodeThroughWrapping(t *testing.T) {
	err := pkgerrors.Wrap(ErrDeviceIO("Banda", constant.ErrIOTimeout), "press button")
	assert.Equal(t, ErrCodeDeviceIO, Code(err))
	assert.Equal(t, "Banda: error de comunicación con el PLC", Message(err))
	assert.True(t, pkgerrors.Is(err, constant.ErrIOTimeout))
}

func TestPlainErrors(t *testing.T) {
	err := pkgerrors.New("disk full")
	assert.Equal(t, ErrCode(0), Code(err))
	assert.Equal(t, "disk full", Message(err))
	assert.Empty(t, Message(nil))
}
