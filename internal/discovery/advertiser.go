package discovery

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Advertiser announces this process's service for the lifetime of a context.
type Advertiser struct {
	props       InstanceProperties
	profile     *ServiceProfile
	machineName string
	log         *zap.Logger
}

// NewAdvertiser validates props and builds the advertised profile, tagged
// with this machine's name.
func NewAdvertiser(props InstanceProperties, opts ...Option) (*Advertiser, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Advertiser{
		props:       props,
		profile:     NewServiceProfile(props, o.machineName),
		machineName: o.machineName,
		log:         o.logger.With(zap.String("service", props.SearchProfile().Key())),
	}, nil
}

// Profile returns the profile handed to the engine.
func (a *Advertiser) Profile() *ServiceProfile {
	return a.profile
}

// MachineName returns the identity carried in the advertisement.
func (a *Advertiser) MachineName() string {
	return a.machineName
}

// AdvertiseUntilCancelled advertises and announces the service, blocks until
// ctx is done, then withdraws it. The withdrawal runs on every exit path,
// including after a failed advertise. Setup failures are logged as warnings;
// only a failed withdrawal is returned.
func (a *Advertiser) AdvertiseUntilCancelled(ctx context.Context, engine Engine) (err error) {
	defer func() {
		if uerr := engine.Unadvertise(a.profile); uerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to unadvertise %s: %w", a.profile.ID(), uerr))
			a.log.Warn("Failed to stop advertising", zap.Error(uerr))
			return
		}
		a.log.Info("Stopped advertising and announcing service",
			zap.String("instance", a.props.InstanceName),
		)
	}()

	if aerr := engine.Advertise(a.profile); aerr != nil {
		a.log.Warn("Failed to advertise service", zap.String("instance", a.props.InstanceName), zap.Error(aerr))
	} else if nerr := engine.Announce(a.profile); nerr != nil {
		a.log.Warn("Failed to announce service", zap.String("instance", a.props.InstanceName), zap.Error(nerr))
	} else {
		a.log.Info("Advertising and announcing service",
			zap.String("instance", a.props.InstanceName),
			zap.Uint16("port", a.props.Port),
			zap.String("machine", a.machineName),
		)
	}

	<-ctx.Done()
	return nil
}

// Start runs AdvertiseUntilCancelled in the background.
func (a *Advertiser) Start(ctx context.Context, engine Engine) *Handle {
	return goHandle(func() error {
		return a.AdvertiseUntilCancelled(ctx, engine)
	})
}
