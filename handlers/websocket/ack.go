package websocket

import (
	"fmt"
	"reflect"

	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	candidate := datas[len(datas)-1]
	ack = wrapAck(candidate)
	if ack == nil {
		return nil, datas
	}

	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := buildAckArgs(typ, err, payload)
		value.Call(args)
	}
}

func buildAckArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	numIn := typ.NumIn()
	args := make([]reflect.Value, numIn)

	for i := 0; i < numIn; i++ {
		paramType := typ.In(i)
		var argValue any

		switch {
		case numIn == 1:
			if err != nil {
				argValue = err
			} else {
				argValue = payload
			}
		case i == 0:
			argValue = err
		case i == 1:
			argValue = payload
		default:
			argValue = nil
		}

		args[i] = coerceValue(argValue, paramType)
	}

	return args
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(targetType) {
		return rv
	}

	if rv.Type().ConvertibleTo(targetType) {
		return rv.Convert(targetType)
	}

	if targetType.Kind() == reflect.Interface {
		if rv.Type().Implements(targetType) || targetType.NumMethod() == 0 {
			return rv
		}
	}

	if targetType.Kind() == reflect.String {
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}

	if targetType.Kind() == reflect.Map && targetType.Key().Kind() == reflect.String {
		if payload, ok := value.(map[string]any); ok {
			return convertMap(payload, targetType)
		}
	}

	return reflect.Zero(targetType)
}

func convertMap(source map[string]any, targetType reflect.Type) reflect.Value {
	result := reflect.MakeMapWithSize(targetType, len(source))
	for key, val := range source {
		keyValue := reflect.ValueOf(key).Convert(targetType.Key())
		valueValue := reflect.ValueOf(val)
		if !valueValue.Type().AssignableTo(targetType.Elem()) {
			if valueValue.Type().ConvertibleTo(targetType.Elem()) {
				valueValue = valueValue.Convert(targetType.Elem())
			} else if targetType.Elem().Kind() != reflect.Interface {
				continue
			}
		}
		result.SetMapIndex(keyValue, valueValue)
	}
	return result
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}

	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}

// parsePadArgs splits an event's arguments into the pad id, the remaining
// arguments and the trailing ack callback, if any.
func parsePadArgs(datas []any) (padID string, args []any, ack ackInvoker) {
	ack, args = extractAck(datas)
	if len(args) == 0 {
		return "", nil, ack
	}

	padID, _ = args[0].(string)
	return padID, args[1:], ack
}

func makeAckPayload(original any, ackErr error) map[string]any {
	response := map[string]any{
		"status": "ok",
	}

	if ackErr != nil {
		response["status"] = "error"
		response["error"] = ackErr.Error()
	}

	if messageID := extractMessageID(original); messageID != "" {
		response["messageId"] = messageID
	}

	return response
}

func extractMessageID(original any) string {
	value, ok := original.(map[string]any)
	if !ok {
		return ""
	}

	if id, exists := value["messageId"].(string); exists {
		return id
	}

	return ""
}
