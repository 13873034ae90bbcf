package mobile

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/mobilectl/faults"
)

// Compute modes as the management API names them.
const (
	ComputeModeShared    = "Shared"
	ComputeModeDedicated = "Dedicated"

	defaultWorkerSize = "Small"
)

var computeModeViews = map[string]string{
	ComputeModeShared:    "Free",
	ComputeModeDedicated: "Reserved",
}

// ComputeModeView returns the user facing name (Free or Reserved) of a mode.
func ComputeModeView(mode string) string {
	if view, ok := computeModeViews[mode]; ok {
		return view
	}
	return mode
}

// ParseComputeMode accepts the user facing names Free and Reserved.
func ParseComputeMode(view string) (string, error) {
	for mode, name := range computeModeViews {
		if strings.EqualFold(strings.TrimSpace(view), name) {
			return mode, nil
		}
	}
	return "", validationError("allowed values of compute mode are Free or Reserved", nil)
}

type Webspace struct {
	Name              string `json:"name,omitempty" yaml:"name,omitempty"`
	ComputeMode       string `json:"computeMode" yaml:"computeMode"`
	NumberOfInstances int    `json:"numberOfInstances" yaml:"numberOfInstances"`
	WorkerSize        string `json:"workerSize,omitempty" yaml:"workerSize,omitempty"`
}

type webspaceUpdate struct {
	ComputeMode       string `json:"computeMode"`
	NumberOfInstances int    `json:"numberOfInstances"`
	WorkerSize        string `json:"workerSize,omitempty"`
}

func (c *Client) GetWebspace(ctx context.Context, webspace string) (Webspace, error) {
	name, err := requireName("webspace", webspace)
	if err != nil {
		return Webspace{}, err
	}

	response, err := c.mobileChannel().Path("webspaces").Path(name).Get(ctx)
	if err != nil {
		return Webspace{}, err
	}

	var raw struct {
		Name              string `json:"name"`
		ComputeMode       string `json:"computeMode"`
		NumberOfInstances *int   `json:"numberOfInstances"`
		WorkerSize        string `json:"workerSize"`
	}
	if err := response.Decode(&raw); err != nil {
		return Webspace{}, err
	}

	result := Webspace{
		Name:              raw.Name,
		ComputeMode:       raw.ComputeMode,
		NumberOfInstances: 1,
		WorkerSize:        raw.WorkerSize,
	}
	if raw.NumberOfInstances != nil {
		result.NumberOfInstances = *raw.NumberOfInstances
	}
	if result.ComputeMode == "" {
		result.ComputeMode = ComputeModeShared
	}
	if result.WorkerSize == "" {
		result.WorkerSize = defaultWorkerSize
	}
	return result, nil
}

func (c *Client) SetWebspace(ctx context.Context, webspace string, settings Webspace) error {
	name, err := requireName("webspace", webspace)
	if err != nil {
		return err
	}

	update := webspaceUpdate{
		ComputeMode:       settings.ComputeMode,
		NumberOfInstances: settings.NumberOfInstances,
	}
	if settings.ComputeMode == ComputeModeDedicated {
		update.WorkerSize = settings.WorkerSize
	}

	_, err = c.mobileChannel().Path("webspaces").Path(name).Post(ctx, update)
	return err
}

// ServiceWebspace returns the webspace of a mobile service.
func (c *Client) ServiceWebspace(ctx context.Context, service string) (string, Webspace, error) {
	details, err := c.GetService(ctx, service)
	if err != nil {
		return "", Webspace{}, err
	}
	if strings.TrimSpace(details.Webspace) == "" {
		return "", Webspace{}, faults.NewTypedError(
			faults.ProtocolError,
			fmt.Sprintf("unable to determine the webspace of the mobile service %s", service),
			nil,
		)
	}

	webspace, err := c.GetWebspace(ctx, details.Webspace)
	if err != nil {
		return "", Webspace{}, err
	}
	return details.Webspace, webspace, nil
}

// ScaleRequest carries the requested compute mode (Shared or Dedicated) and
// instance count; zero values keep the current setting.
type ScaleRequest struct {
	ComputeMode       string
	NumberOfInstances int
}

func (r ScaleRequest) Validate() error {
	if r.ComputeMode == "" && r.NumberOfInstances == 0 {
		return validationError("specify a compute mode or a number of instances", nil)
	}
	if r.ComputeMode != "" && r.ComputeMode != ComputeModeShared && r.ComputeMode != ComputeModeDedicated {
		return validationError("allowed values of compute mode are Free or Reserved", nil)
	}
	if r.NumberOfInstances < 0 {
		return validationError("number of instances must be a positive integer", nil)
	}
	return nil
}

// PlanScaleChange computes the webspace that satisfies request. changed is
// false when the current settings already match.
func PlanScaleChange(current Webspace, request ScaleRequest) (Webspace, bool, error) {
	if err := request.Validate(); err != nil {
		return Webspace{}, false, err
	}

	if request.ComputeMode != ComputeModeDedicated && request.NumberOfInstances > 1 && current.ComputeMode == ComputeModeShared {
		return Webspace{}, false, validationError(fmt.Sprintf(
			"cannot set number of instances to %d because the mobile service is in Free mode; "+
				"change the compute mode to Reserved to run more than 1 instance",
			request.NumberOfInstances,
		), nil)
	}

	if (request.ComputeMode == "" || request.ComputeMode == current.ComputeMode) &&
		(request.NumberOfInstances == 0 || request.NumberOfInstances == current.NumberOfInstances) {
		return current, false, nil
	}

	next := Webspace{
		Name:              current.Name,
		ComputeMode:       current.ComputeMode,
		NumberOfInstances: current.NumberOfInstances,
		WorkerSize:        current.WorkerSize,
	}
	if request.ComputeMode != "" {
		next.ComputeMode = request.ComputeMode
	}
	if request.NumberOfInstances != 0 {
		next.NumberOfInstances = request.NumberOfInstances
	}
	return next, true, nil
}

// Rescale applies request to the webspace of a service. It returns the
// resulting webspace and whether anything was changed.
func (c *Client) Rescale(ctx context.Context, service string, request ScaleRequest) (Webspace, bool, error) {
	if err := request.Validate(); err != nil {
		return Webspace{}, false, err
	}

	name, current, err := c.ServiceWebspace(ctx, service)
	if err != nil {
		return Webspace{}, false, err
	}

	next, changed, err := PlanScaleChange(current, request)
	if err != nil || !changed {
		return next, false, err
	}

	if err := c.SetWebspace(ctx, name, next); err != nil {
		return Webspace{}, false, err
	}
	return next, true, nil
}
