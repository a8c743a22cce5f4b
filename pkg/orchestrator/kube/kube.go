// Package kube applies workload descriptors to Kubernetes clusters by
// rendering them into Deployments and Services.
package kube

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/slipway-sh/slipway/pkg/credentials"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/orchestrator"
	"github.com/slipway-sh/slipway/pkg/types"
)

const managedByLabel = "app.kubernetes.io/managed-by"

// ClientsetFactory builds an API client from a credential handle. It
// runs once per submission so renewed credentials take effect.
type ClientsetFactory func(cred credentials.Handle) (kubernetes.Interface, error)

// Submitter renders workload descriptors into Deployments and Services
// and applies them to one cluster's API server.
type Submitter struct {
	factory ClientsetFactory
	logger  zerolog.Logger
}

// NewSubmitter creates a submitter for the API server at the given URL,
// authenticating each call with the credential handle's token.
func NewSubmitter(server string) *Submitter {
	return NewSubmitterWithFactory(func(cred credentials.Handle) (kubernetes.Interface, error) {
		return kubernetes.NewForConfig(&rest.Config{
			Host:        server,
			BearerToken: cred.Token,
		})
	})
}

// NewSubmitterWithFactory creates a submitter with a custom clientset
// factory. Tests inject fake clientsets here.
func NewSubmitterWithFactory(factory ClientsetFactory) *Submitter {
	return &Submitter{
		factory: factory,
		logger:  log.WithComponent("kube"),
	}
}

// Apply converges the cluster's Deployment and Service for the
// workload. Resources matching the descriptor are left untouched, so
// resubmitting an identical descriptor returns Unchanged.
func (s *Submitter) Apply(ctx context.Context, cred credentials.Handle, wd *types.WorkloadDescriptor) (orchestrator.Receipt, error) {
	clientset, err := s.factory(cred)
	if err != nil {
		return orchestrator.Receipt{}, fmt.Errorf("failed to build cluster client: %w", err)
	}

	deploymentChanged, err := s.ensureDeployment(ctx, clientset, wd)
	if err != nil {
		return orchestrator.Receipt{}, err
	}

	serviceChanged, err := s.ensureService(ctx, clientset, wd)
	if err != nil {
		return orchestrator.Receipt{}, err
	}

	if !deploymentChanged && !serviceChanged {
		s.logger.Debug().Str("workload", wd.Key()).Msg("Workload unchanged")
		return orchestrator.Receipt{Outcome: orchestrator.OutcomeUnchanged}, nil
	}

	s.logger.Info().
		Str("workload", wd.Key()).
		Str("image", wd.Image.String()).
		Bool("deploymentChanged", deploymentChanged).
		Bool("serviceChanged", serviceChanged).
		Msg("Workload applied")

	return orchestrator.Receipt{
		Outcome: orchestrator.OutcomeAccepted,
		ApplyID: uuid.New().String(),
	}, nil
}

func (s *Submitter) ensureDeployment(ctx context.Context, clientset kubernetes.Interface, wd *types.WorkloadDescriptor) (bool, error) {
	desired := renderDeployment(wd)
	deployments := clientset.AppsV1().Deployments(wd.Namespace)

	current, err := deployments.Get(ctx, wd.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := deployments.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return false, fmt.Errorf("failed to create deployment %s: %w", wd.Key(), err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get deployment %s: %w", wd.Key(), err)
	}

	if !deploymentDiffers(current, desired) {
		return false, nil
	}

	// Mutate the retrieved object so cluster-managed fields survive
	current.Labels = desired.Labels
	current.Spec.Replicas = desired.Spec.Replicas
	current.Spec.Template = desired.Spec.Template
	current.Spec.Strategy = desired.Spec.Strategy

	if _, err := deployments.Update(ctx, current, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("failed to update deployment %s: %w", wd.Key(), err)
	}
	return true, nil
}

func (s *Submitter) ensureService(ctx context.Context, clientset kubernetes.Interface, wd *types.WorkloadDescriptor) (bool, error) {
	desired := renderService(wd)
	services := clientset.CoreV1().Services(wd.Namespace)

	current, err := services.Get(ctx, wd.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := services.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
			return false, fmt.Errorf("failed to create service %s: %w", wd.Key(), err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get service %s: %w", wd.Key(), err)
	}

	if !serviceDiffers(current, desired) {
		return false, nil
	}

	// Flip type and ports in place; the ClusterIP and the selector keep
	// routing to the same pods throughout
	current.Labels = desired.Labels
	current.Spec.Type = desired.Spec.Type
	current.Spec.Ports = desired.Spec.Ports
	current.Spec.Selector = desired.Spec.Selector

	if _, err := services.Update(ctx, current, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("failed to update service %s: %w", wd.Key(), err)
	}
	return true, nil
}

func selectorFor(wd *types.WorkloadDescriptor) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":     wd.Name,
		"app.kubernetes.io/instance": wd.Namespace + "-" + wd.Name,
	}
}

func labelsFor(wd *types.WorkloadDescriptor) map[string]string {
	labels := selectorFor(wd)
	labels[managedByLabel] = "slipway"
	return labels
}

func renderDeployment(wd *types.WorkloadDescriptor) *appsv1.Deployment {
	replicas := int32(wd.Replicas)

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      wd.Name,
			Namespace: wd.Namespace,
			Labels:    labelsFor(wd),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: selectorFor(wd)},
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: selectorFor(wd)},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  wd.Name,
						Image: wd.Image.String(),
						Ports: []corev1.ContainerPort{{
							ContainerPort: int32(wd.ContainerPort),
						}},
						Resources: renderResources(wd.Resources),
					}},
				},
			},
		},
	}
}

func renderResources(r types.Resources) corev1.ResourceRequirements {
	requirements := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{},
		Limits:   corev1.ResourceList{},
	}

	if !r.CPURequest.IsZero() {
		requirements.Requests[corev1.ResourceCPU] = r.CPURequest.Quantity
	}
	if !r.MemoryRequest.IsZero() {
		requirements.Requests[corev1.ResourceMemory] = r.MemoryRequest.Quantity
	}
	if !r.CPULimit.IsZero() {
		requirements.Limits[corev1.ResourceCPU] = r.CPULimit.Quantity
	}
	if !r.MemoryLimit.IsZero() {
		requirements.Limits[corev1.ResourceMemory] = r.MemoryLimit.Quantity
	}

	return requirements
}

func renderService(wd *types.WorkloadDescriptor) *corev1.Service {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      wd.Name,
			Namespace: wd.Namespace,
			Labels:    labelsFor(wd),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: selectorFor(wd),
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       int32(wd.ContainerPort),
				TargetPort: intstr.FromInt(wd.ContainerPort),
			}},
		},
	}

	if wd.Exposure == types.ExposureLoadBalanced {
		svc.Spec.Type = corev1.ServiceTypeLoadBalancer
		svc.Spec.Ports[0].Port = int32(wd.ExternalPort)
	}

	return svc
}

// deploymentDiffers compares only the fields slipway manages; the
// cluster decorates objects with defaults that must not force updates.
func deploymentDiffers(current, desired *appsv1.Deployment) bool {
	if current.Spec.Replicas == nil || *current.Spec.Replicas != *desired.Spec.Replicas {
		return true
	}

	currentContainers := current.Spec.Template.Spec.Containers
	desiredContainers := desired.Spec.Template.Spec.Containers
	if len(currentContainers) != 1 {
		return true
	}

	cc, dc := currentContainers[0], desiredContainers[0]
	if cc.Image != dc.Image {
		return true
	}
	if len(cc.Ports) != 1 || cc.Ports[0].ContainerPort != dc.Ports[0].ContainerPort {
		return true
	}
	if resourceListDiffers(cc.Resources.Requests, dc.Resources.Requests) {
		return true
	}
	if resourceListDiffers(cc.Resources.Limits, dc.Resources.Limits) {
		return true
	}

	return false
}

func serviceDiffers(current, desired *corev1.Service) bool {
	if current.Spec.Type != desired.Spec.Type {
		return true
	}
	if len(current.Spec.Ports) != 1 {
		return true
	}
	if current.Spec.Ports[0].Port != desired.Spec.Ports[0].Port {
		return true
	}
	if current.Spec.Ports[0].TargetPort != desired.Spec.Ports[0].TargetPort {
		return true
	}
	return false
}

// resourceListDiffers compares quantities by value, so "1000m" and "1"
// are the same amount.
func resourceListDiffers(current, desired corev1.ResourceList) bool {
	for _, name := range []corev1.ResourceName{corev1.ResourceCPU, corev1.ResourceMemory} {
		cq, currentHas := current[name]
		dq, desiredHas := desired[name]
		if currentHas != desiredHas {
			return true
		}
		if currentHas && cq.Cmp(dq) != 0 {
			return true
		}
	}
	return false
}
