// Package modelcard exports a trained forest and its metrics as a CycloneDX
// ML-BOM so the model can be tracked next to other software components.
package modelcard

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/YuminosukeSato/winequality/artifact"
	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/wine"
)

const (
	ModelName   = "wine-quality-random-forest"
	DatasetName = "winequality-red"

	modelRefPrefix   = "model:"
	datasetRefPrefix = "dataset:"
)

// Build assembles the BOM. The model is the metadata component and the
// dataset it was trained on is a data component it depends on.
func Build(a *artifact.Artifacts, src wine.Source) (*cdx.BOM, error) {
	if a == nil || a.Model == nil || a.Metrics == nil {
		return nil, errors.NewValueError("modelcard.Build", "model and metrics are required")
	}
	if !a.Model.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Build")
	}

	runID := a.Model.RunID()
	version := runID
	if version == "" {
		version = "unversioned"
	}
	modelRef := modelRefPrefix + ModelName + "@" + version
	datasetRef := datasetRefPrefix + DatasetName

	bom := cdx.NewBOM()
	bom.Metadata = &cdx.Metadata{
		Component: modelComponent(a, modelRef, datasetRef, version),
	}
	if !a.Metrics.TrainedAt.IsZero() {
		bom.Metadata.Timestamp = a.Metrics.TrainedAt.UTC().Format(time.RFC3339)
	}

	bom.Components = &[]cdx.Component{datasetComponent(a, src, datasetRef)}
	bom.Dependencies = &[]cdx.Dependency{
		{Ref: modelRef, Dependencies: &[]string{datasetRef}},
		{Ref: datasetRef},
	}
	return bom, nil
}

func modelComponent(a *artifact.Artifacts, ref, datasetRef, version string) *cdx.Component {
	r := a.Metrics
	perf := []cdx.MLPerformanceMetric{
		{Type: "mean_squared_error", Value: formatMetric(r.MSE), Slice: "holdout"},
		{Type: "root_mean_squared_error", Value: formatMetric(r.RMSE), Slice: "holdout"},
		{Type: "mean_absolute_error", Value: formatMetric(r.MAE), Slice: "holdout"},
		{Type: "r2", Value: formatMetric(r.R2), Slice: "holdout"},
		{Type: "r2", Value: formatMetric(r.CVR2Mean), Slice: "cross_validation_mean"},
	}

	inputs := make([]cdx.MLInputOutputParameters, 0, wine.NumFeatures)
	for _, f := range wine.Features() {
		inputs = append(inputs, cdx.MLInputOutputParameters{Format: f.Column() + ":float64"})
	}

	return &cdx.Component{
		BOMRef:      ref,
		Type:        cdx.ComponentTypeMachineLearningModel,
		Name:        ModelName,
		Version:     version,
		Description: "Random forest regressor predicting red wine quality from physiochemical measurements",
		ModelCard: &cdx.MLModelCard{
			ModelParameters: &cdx.MLModelParameters{
				Approach:           &cdx.MLModelParametersApproach{Type: cdx.MLModelParametersApproachTypeSupervised},
				Task:               "regression",
				ArchitectureFamily: "random forest",
				ModelArchitecture:  "RandomForestRegressor",
				Datasets:           &[]cdx.MLDatasetChoice{{Ref: datasetRef}},
				Inputs:             &inputs,
				Outputs:            &[]cdx.MLInputOutputParameters{{Format: wine.QualityColumn + ":float64"}},
			},
			QuantitativeAnalysis: &cdx.MLQuantitativeAnalysis{
				PerformanceMetrics: &perf,
			},
		},
		Properties: modelProperties(a),
	}
}

// modelProperties lists hyperparameters, provenance and importances in a
// stable order.
func modelProperties(a *artifact.Artifacts) *[]cdx.Property {
	var props []cdx.Property

	params := a.Model.GetParams()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		props = append(props, cdx.Property{Name: "hyperparameter:" + k, Value: fmt.Sprint(params[k])})
	}

	r := a.Metrics
	if r.RunID != "" {
		props = append(props, cdx.Property{Name: "training:run_id", Value: r.RunID})
	}
	props = append(props,
		cdx.Property{Name: "training:samples", Value: strconv.Itoa(r.Samples)},
		cdx.Property{Name: "training:train_samples", Value: strconv.Itoa(r.TrainSamples)},
		cdx.Property{Name: "training:test_samples", Value: strconv.Itoa(r.TestSamples)},
	)
	for _, name := range r.FeatureNames() {
		props = append(props, cdx.Property{
			Name:  "feature_importance:" + name,
			Value: formatMetric(r.FeatureImportance[name]),
		})
	}
	return &props
}

func datasetComponent(a *artifact.Artifacts, src wine.Source, ref string) cdx.Component {
	comp := cdx.Component{
		BOMRef:      ref,
		Type:        cdx.ComponentTypeData,
		Name:        DatasetName,
		Description: "UCI Wine Quality dataset, red variants",
		Data: &[]cdx.ComponentData{{
			Type:     cdx.ComponentDataTypeDataset,
			Name:     DatasetName,
			Contents: &cdx.ComponentDataContents{URL: src.URL},
		}},
		Properties: &[]cdx.Property{
			{Name: "dataset:rows", Value: strconv.Itoa(a.Metrics.Samples)},
			{Name: "dataset:features", Value: strconv.Itoa(wine.NumFeatures)},
			{Name: "dataset:target", Value: wine.QualityColumn},
		},
	}
	if src.URL != "" {
		comp.ExternalReferences = &[]cdx.ExternalReference{{
			Type: cdx.ExternalReferenceType("distribution"),
			URL:  src.URL,
		}}
	}
	return comp
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write encodes the BOM as indented JSON.
func Write(w io.Writer, bom *cdx.BOM) error {
	enc := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON)
	enc.SetPretty(true)
	if err := enc.Encode(bom); err != nil {
		return errors.Wrap(err, "failed to encode model card")
	}
	return nil
}

// Save writes the BOM to path atomically.
func Save(path string, bom *cdx.BOM) error {
	staged, err := model.StageFile(path, func(w io.Writer) error {
		return Write(w, bom)
	})
	if err != nil {
		return err
	}
	return staged.Commit()
}
