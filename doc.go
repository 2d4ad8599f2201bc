// Package elecbill is a tabular preprocessing pipeline for predicting the
// ElectricityBill target from household appliance and tariff features.
//
// A run validates the raw CSV against a schema, splits it 75/25 with a fixed
// seed, fits a column transformer on the training split only and persists the
// transformed matrices together with the fitted preprocessor, so inference
// code can reuse it without refitting.
//
// # Quick Start
//
//	elecbill run --config config/config.yaml --params params.yaml --schema schema.yaml
//
// or in-process:
//
//	mgr, err := config.NewManager("config/config.yaml", "params.yaml", "schema.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manifest, err := pipeline.New(mgr, nil).Run()
//
// # Preprocessing
//
// The column transformer mirrors scikit-learn's ColumnTransformer:
//
//   - numerical columns: median imputation, then standardization
//   - categorical columns: most-frequent imputation (placeholder "missing"
//     when nothing was observed), then one-hot encoding that encodes unseen
//     categories as all zeros
//   - every other feature column passes through unchanged
//
//	ct, err := preprocessing.BuildPreprocessor(numeric, categorical, preprocessing.DefaultOptions())
//	Xtrain, err := ct.FitTransform(trainFeatures)
//	Xtest, err := ct.Transform(testFeatures)
//
// # Packages
//
//   - config: YAML documents resolved into immutable stage configs
//   - preprocessing: imputers, scalers, one-hot encoder, ColumnTransformer
//   - modelselection: seeded train/test split
//   - dataset: CSV input and output
//   - components: validation stage, validation gate, data transformation
//   - pipeline: orchestrator, run manifest, Apply, file watch
//   - report: histograms of numeric columns
//   - core/model: fitted-state tracking and gob persistence
//   - pkg/errors, pkg/log, pkg/telemetry: errors, structured logging, metrics
//
// # Artifacts
//
// Under data_transformation.root_dir: train.csv, test.csv,
// train_transformed.csv, test_transformed.csv, preprocessor_obj.gob and,
// when enabled, plots/*.png. run_manifest.json is written under
// artifacts_root.
package elecbill
