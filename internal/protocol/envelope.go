package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/information-sharing-networks/authcore/internal/apperrors"
)

// envelopeSchema describes every auth API response:
// status true carries a data object and no error, status false carries an error with a code and a text.
// Fields of data that the client reads are type checked; everything else in data is left alone.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"type": "boolean"},
    "data": {
      "type": ["object", "null"],
      "properties": {
        "agences": {"type": "array"},
        "version": {"type": "integer"},
        "idMbr": {"type": "integer"},
        "adrMac": {"type": "string"},
        "mail": {"type": "string"},
        "hasContrat": {"type": "boolean"},
        "planActions": {"type": "string"}
      }
    },
    "error": {
      "type": ["object", "null"],
      "required": ["code", "txt"],
      "properties": {
        "code": {"type": "integer"},
        "txt": {"type": "string"}
      }
    }
  },
  "if": {"properties": {"status": {"const": true}}},
  "then": {
    "required": ["data"],
    "properties": {"data": {"type": "object"}, "error": {"type": "null"}}
  },
  "else": {
    "required": ["error"],
    "properties": {"error": {"type": "object"}}
  }
}`

const envelopeSchemaURL = "https://authcore.invalid/schemas/envelope.json"

var compiledEnvelope = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(envelopeSchemaURL)
})

type envelope struct {
	Status bool          `json:"status"`
	Data   *LoginPayload `json:"data"`
	Error  *serverError  `json:"error"`
}

type serverError struct {
	Code int    `json:"code"`
	Txt  string `json:"txt"`
}

// decodeEnvelope validates body and converts it into a LoginResult.
// Anything that is not a well formed envelope is an InvalidResponse error.
func decodeEnvelope(body []byte) (*LoginResult, error) {
	schema, err := compiledEnvelope()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidResponse, fmt.Errorf("compile envelope schema: %w", err))
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidResponse, fmt.Errorf("response is not JSON: %w", err))
	}
	if err := schema.Validate(inst); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidResponse, fmt.Errorf("response envelope: %w", err))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidResponse, fmt.Errorf("decoding response: %w", err))
	}

	if env.Status {
		return &LoginResult{Status: true, Data: env.Data}, nil
	}
	return &LoginResult{Status: false, Error: apperrors.FromServer(env.Error.Code, env.Error.Txt)}, nil
}
