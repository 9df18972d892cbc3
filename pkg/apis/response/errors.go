package response

var errors = map[ErrCode]string{
	ErrCodeMalformedJSON:     "Datos JSON no válidos",
	ErrCodeMissingAction:     "Acción no especificada",
	ErrCodeUnknownDevice:     "Dispositivo desconocido: %s",
	ErrCodeUnknownAction:     "Acción desconocida: %s",
	ErrCodeNotReady:          "%s: no se puede ejecutar %s, sistema apagado",
	ErrCodeReadOnlyWrite:     "%s: la variable es de solo lectura",
	ErrCodeDeviceUnavailable: "%s: PLC no conectado",
	ErrCodeDeviceIO:          "%s: error de comunicación con el PLC",
	ErrCodeStateStore:        "No se pudo guardar el estado",
	ErrCodeInvalidUpdate:     "Actualización no válida: %s",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errors[ErrCodeMalformedJSON],
}

var ErrMissingAction = &responseError{
	Code:    ErrCodeMissingAction,
	Message: errors[ErrCodeMissingAction],
}

func ErrUnknownDevice(device string, err error) *responseError {
	return generateErrorWrapper(ErrCodeUnknownDevice, err, device)
}

func ErrUnknownAction(action string, err error) *responseError {
	return generateErrorWrapper(ErrCodeUnknownAction, err, action)
}

func ErrNotReady(unit, action string, err error) *responseError {
	return generateErrorWrapper(ErrCodeNotReady, err, unit, action)
}

func ErrReadOnlyWrite(unit string, err error) *responseError {
	return generateErrorWrapper(ErrCodeReadOnlyWrite, err, unit)
}

func ErrDeviceUnavailable(unit string, err error) *responseError {
	return generateErrorWrapper(ErrCodeDeviceUnavailable, err, unit)
}

func ErrDeviceIO(unit string, err error) *responseError {
	return generateErrorWrapper(ErrCodeDeviceIO, err, unit)
}

func ErrStateStore(err error) *responseError {
	return generateErrorWrapper(ErrCodeStateStore, err)
}

func ErrInvalidUpdate(err error) *responseError {
	return generateErrorWrapper(ErrCodeInvalidUpdate, err, err.Error())
}
