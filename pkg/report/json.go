package report

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	analyzer "github.com/openshift-netlab/netdiag/pkg/analyze"
)

// WriteJSON emits the result object for machine consumption.
func WriteJSON(w io.Writer, result *analyzer.Result) error {
	return WriteJSONValue(w, result)
}

// WriteJSONValue indents any report-shaped value. Used by commands whose
// output is not an analyzer result, like the coverage and polarion reports.
func WriteJSONValue(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	return nil
}
