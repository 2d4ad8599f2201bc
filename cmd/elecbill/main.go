// Command elecbill runs the ElectricityBill preprocessing pipeline.
//
//	elecbill run --config config/config.yaml --params params.yaml --schema schema.yaml
//	elecbill apply --preprocessor artifacts/data_transformation/preprocessor_obj.gob \
//	    --input new_rows.csv --output new_rows_transformed.csv
//
// Every persistent flag can also be set through an ELECBILL_ environment
// variable, e.g. ELECBILL_LOG_LEVEL=debug.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
