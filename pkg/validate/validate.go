package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-containerregistry/pkg/name"
	version "github.com/hashicorp/go-version"

	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/types"
)

// DefaultSupportedVersions lists the control plane minor versions a
// topology may request. Override with WithSupportedVersions.
var DefaultSupportedVersions = []string{"1.29", "1.30", "1.31", "1.32", "1.33"}

// Validator checks descriptors against their structural invariants.
// It holds no I/O handles and never mutates its input, so a single
// instance is safe for concurrent use.
type Validator struct {
	check     *validator.Validate
	supported []*version.Version
}

// Option configures a Validator.
type Option func(*Validator)

// WithSupportedVersions replaces the control plane version allow-list.
// Panics if an entry is not a parseable version; the allow-list is
// operator configuration, not user input.
func WithSupportedVersions(versions ...string) Option {
	parsed := make([]*version.Version, 0, len(versions))
	for _, s := range versions {
		parsed = append(parsed, version.Must(version.NewVersion(s)))
	}
	return func(v *Validator) {
		v.supported = parsed
	}
}

// New builds a Validator with the default allow-list.
func New(opts ...Option) *Validator {
	check := validator.New(validator.WithRequiredStructEnabled())

	// Report violations under manifest field names, not Go names.
	check.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if tag == "" || tag == "-" {
			tag = strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		}
		if tag == "-" {
			return ""
		}
		return tag
	})

	v := &Validator{check: check}
	for _, s := range DefaultSupportedVersions {
		v.supported = append(v.supported, version.Must(version.NewVersion(s)))
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ClusterTopology checks a topology descriptor. Violations come back
// in field declaration order, version checks last.
func (v *Validator) ClusterTopology(ct *types.ClusterTopology) Result {
	violations := v.structViolations(ct)
	violations = append(violations, v.versionViolations(ct.ControlPlaneVersion)...)
	countViolations("ClusterTopology", len(violations))
	return Result{Violations: violations}
}

// Workload checks a workload descriptor, including its image reference
// and resource envelope.
func (v *Validator) Workload(wd *types.WorkloadDescriptor) Result {
	violations := v.structViolations(wd)
	violations = append(violations, refViolations("image", wd.Image)...)
	violations = append(violations, resourceViolations(wd.Resources)...)
	countViolations("Workload", len(violations))
	return Result{Violations: violations}
}

// Image checks an image descriptor.
func (v *Validator) Image(im *types.ImageDescriptor) Result {
	violations := v.structViolations(im)
	violations = append(violations, baseRefViolations("baseImage", im.BaseImage)...)
	violations = append(violations, baseRefViolations("runtimeImage", im.RuntimeImage)...)
	countViolations("Image", len(violations))
	return Result{Violations: violations}
}

// CrossReferences checks that every workload targets a topology that
// is present in the same bundle.
func (v *Validator) CrossReferences(tops []*types.ClusterTopology, wds []*types.WorkloadDescriptor) Result {
	known := make(map[string]bool, len(tops))
	for _, ct := range tops {
		known[ct.Name] = true
	}

	var violations []Violation
	for _, wd := range wds {
		if wd.Cluster == "" || known[wd.Cluster] {
			continue
		}
		violations = append(violations, Violation{
			Field:  "cluster",
			Rule:   "known_cluster",
			Value:  wd.Cluster,
			Detail: fmt.Sprintf("workload %s targets a cluster with no topology in this bundle", wd.Key()),
		})
	}
	countViolations("Workload", len(violations))
	return Result{Violations: violations}
}

// countViolations feeds the violation counter. Cross-reference failures
// count against the workload that holds the dangling reference.
func countViolations(kind string, n int) {
	if n > 0 {
		metrics.ValidationViolationsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func (v *Validator) structViolations(target interface{}) []Violation {
	err := v.check.Struct(target)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// validator.InvalidValidationError means the caller handed in
		// something that is not a struct.
		return []Violation{{Rule: "struct", Detail: err.Error()}}
	}

	violations := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, Violation{
			Field:  fieldPath(fe.Namespace()),
			Rule:   fe.Tag(),
			Value:  fmt.Sprintf("%v", fe.Value()),
			Detail: detailFor(fe),
		})
	}
	return violations
}

func (v *Validator) versionViolations(raw string) []Violation {
	if raw == "" {
		// The required tag already reported this.
		return nil
	}

	parsed, err := version.NewVersion(raw)
	if err != nil {
		return []Violation{{
			Field:  "controlPlaneVersion",
			Rule:   "version",
			Value:  raw,
			Detail: "not a parseable version",
		}}
	}

	segs := parsed.Segments()
	for _, allowed := range v.supported {
		as := allowed.Segments()
		if len(segs) >= 2 && len(as) >= 2 && segs[0] == as[0] && segs[1] == as[1] {
			return nil
		}
	}

	names := make([]string, 0, len(v.supported))
	for _, allowed := range v.supported {
		as := allowed.Segments()
		names = append(names, fmt.Sprintf("%d.%d", as[0], as[1]))
	}
	return []Violation{{
		Field:  "controlPlaneVersion",
		Rule:   "supported_version",
		Value:  raw,
		Detail: fmt.Sprintf("must be one of [%s]", strings.Join(names, " ")),
	}}
}

// refViolations checks that a complete artifact reference parses under
// strict registry naming rules. Missing components are left to the
// required tags so they are not reported twice.
func refViolations(field string, ref types.ArtifactRef) []Violation {
	if ref.IsZero() {
		return nil
	}
	if _, err := name.NewTag(ref.String(), name.StrictValidation); err != nil {
		return []Violation{{
			Field:  field,
			Rule:   "reference",
			Value:  ref.String(),
			Detail: "not a valid image reference",
		}}
	}
	return nil
}

// baseRefViolations checks build and runtime base references, which
// may rely on registry and tag defaulting.
func baseRefViolations(field, ref string) []Violation {
	if ref == "" {
		return nil
	}
	if _, err := name.ParseReference(ref); err != nil {
		return []Violation{{
			Field:  field,
			Rule:   "reference",
			Value:  ref,
			Detail: "not a valid image reference",
		}}
	}
	return nil
}

func resourceViolations(res types.Resources) []Violation {
	var violations []Violation

	quantities := []struct {
		field string
		q     types.Quantity
	}{
		{"resources.cpuRequest", res.CPURequest},
		{"resources.cpuLimit", res.CPULimit},
		{"resources.memoryRequest", res.MemoryRequest},
		{"resources.memoryLimit", res.MemoryLimit},
	}
	for i := range quantities {
		if quantities[i].q.Sign() < 0 {
			violations = append(violations, Violation{
				Field:  quantities[i].field,
				Rule:   "positive",
				Value:  quantities[i].q.String(),
				Detail: "must not be negative",
			})
		}
	}

	if res.CPULimit.Sign() > 0 && res.CPURequest.Cmp(res.CPULimit.Quantity) > 0 {
		violations = append(violations, Violation{
			Field:  "resources.cpuRequest",
			Rule:   "request_within_limit",
			Value:  res.CPURequest.String(),
			Detail: fmt.Sprintf("request exceeds limit %s", res.CPULimit.String()),
		})
	}
	if res.MemoryLimit.Sign() > 0 && res.MemoryRequest.Cmp(res.MemoryLimit.Quantity) > 0 {
		violations = append(violations, Violation{
			Field:  "resources.memoryRequest",
			Rule:   "request_within_limit",
			Value:  res.MemoryRequest.String(),
			Detail: fmt.Sprintf("request exceeds limit %s", res.MemoryLimit.String()),
		})
	}
	return violations
}

// fieldPath turns "WorkloadDescriptor.resources.cpuRequest" into
// "resources.cpuRequest".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func detailFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("at least %s entries required", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be below %s", lowerFirst(fe.Param()))
	case "ltefield":
		return fmt.Sprintf("must not exceed %s", lowerFirst(fe.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "unique":
		return "entries must be unique"
	case "hostname_rfc1123":
		return "must be a valid DNS-1123 name"
	case "required_if":
		return "required when exposure is LoadBalanced"
	case "excluded_unless":
		return "only allowed when exposure is LoadBalanced"
	default:
		return fmt.Sprintf("failed %s constraint", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
