// Package recognition extracts structured invoice fields from PDF scans
// with the OpenAI API. The response format is a strict JSON schema
// generated from the domain struct, so the model cannot return fields
// the pipeline does not know.
package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"stroyfin/internal/domain/documents/invoice"
)

const prompt = `You are an accounts-payable clerk at a Russian construction firm.
Extract the invoice fields from the attached document scan.
Rules:
1. Amounts are decimal strings with a dot separator, e.g. "125000.50".
2. Dates are YYYY-MM-DD.
3. INN is digits only.
4. Leave a field empty when it is not printed on the document.
5. Do not invent line items; extract only what is printed.`

// Recognizer calls the OpenAI API to read invoice scans.
type Recognizer struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewRecognizer creates an invoice recognizer.
func NewRecognizer(apiKey string, model string) *Recognizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	return &Recognizer{
		client: &client,
		model:  shared.ResponsesModel(model),
	}
}

// Recognize extracts structured fields from a PDF scan.
func (r *Recognizer) Recognize(ctx context.Context, fileName string, pdf []byte) (*invoice.RecognizedFields, error) {
	schemaMap, err := fieldsSchema()
	if err != nil {
		return nil, err
	}

	fileData := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf)

	params := responses.ResponseNewParams{
		Model: r.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(
					responses.ResponseInputMessageContentListParam{
						responses.ResponseInputContentUnionParam{
							OfInputText: &responses.ResponseInputTextParam{Text: prompt},
						},
						responses.ResponseInputContentUnionParam{
							OfInputFile: &responses.ResponseInputFileParam{
								Filename: param.NewOpt(fileName),
								FileData: param.NewOpt(fileData),
							},
						},
					},
					"user",
				),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:   constant.JSONSchema("json_schema"),
					Name:   "invoice_fields",
					Strict: param.NewOpt(true),
					Schema: schemaMap,
				},
			},
		},
	}

	resp, err := r.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty recognition response")
	}

	var fields invoice.RecognizedFields
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("parse recognition response: %w", err)
	}

	return &fields, nil
}

func fieldsSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(invoice.RecognizedFields{})

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(raw, &schemaMap); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return schemaMap, nil
}
