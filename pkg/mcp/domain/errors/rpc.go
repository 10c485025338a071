package errors

// JSON-RPC 2.0 error codes
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
)

// JSONRPCCode maps err to the JSON-RPC error code a client should see
func JSONRPCCode(err error) int {
	return JSONRPCCodeFor(CodeOf(err))
}

// JSONRPCCodeFor maps an error code to a JSON-RPC error code
func JSONRPCCodeFor(code ErrorCode) int {
	switch code {
	case CodeParseError:
		return RPCParseError
	case CodeInvalidRequest, CodeRequestTooLarge:
		return RPCInvalidRequest
	case CodeMethodNotFound:
		return RPCMethodNotFound
	case CodeValidationFailed, CodeInvalidParameter, CodeMissingParameter,
		CodeTypeMismatch, CodeToolNotFound:
		return RPCInvalidParams
	default:
		return RPCInternalError
	}
}

// CodeForJSONRPC maps a JSON-RPC error code back to the error code used as
// a metric label
func CodeForJSONRPC(code int) ErrorCode {
	switch code {
	case RPCParseError:
		return CodeParseError
	case RPCInvalidRequest:
		return CodeInvalidRequest
	case RPCMethodNotFound:
		return CodeMethodNotFound
	case RPCInvalidParams:
		return CodeInvalidParameter
	default:
		return CodeInternalError
	}
}
