package config

import "time"

// applyDefaults fills zero-valued fields with the spec's documented
// defaults (§4.3, §4.5, §4.6, §4.8, §4.9), mirroring the teacher's
// defaults-application step in pkg/config/loader.go's Initialize pipeline.
func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 15 * time.Minute
	}

	if c.Supervisor.MaxIterations == 0 {
		c.Supervisor.MaxIterations = 3
	}
	if c.Supervisor.HardIterationCap == 0 {
		c.Supervisor.HardIterationCap = 5
	}
	if c.Supervisor.ApprovalThreshold == 0 {
		c.Supervisor.ApprovalThreshold = 7.0
	}
	if c.Supervisor.MaxGraphTransitions == 0 {
		c.Supervisor.MaxGraphTransitions = 100
	}
	if c.Supervisor.AgentTimeout == 0 {
		c.Supervisor.AgentTimeout = 300 * time.Second
	}

	if c.EventBus.SubscriberQueueDepth == 0 {
		c.EventBus.SubscriberQueueDepth = 1024
	}
	if c.EventBus.CatchupLimit == 0 {
		c.EventBus.CatchupLimit = 200
	}
	if c.EventBus.ListenTimeout == 0 {
		c.EventBus.ListenTimeout = 10 * time.Second
	}
	if c.EventBus.WriteTimeout == 0 {
		c.EventBus.WriteTimeout = 5 * time.Second
	}

	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.PollIntervalJitter == 0 {
		c.Outbox.PollIntervalJitter = time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 10
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Outbox.Retention == 0 {
		c.Outbox.Retention = 7 * 24 * time.Hour
	}

	if c.WSAuth.Environment == "" {
		c.WSAuth.Environment = "development"
	}
	if c.WSAuth.MissionRecvBuffer == 0 {
		c.WSAuth.MissionRecvBuffer = 256
	}

	if c.Gateway.HealthProbeInterval == 0 {
		c.Gateway.HealthProbeInterval = 30 * time.Second
	}
	if c.Gateway.HealthProbeTimeout == 0 {
		c.Gateway.HealthProbeTimeout = 5 * time.Second
	}
	if c.Gateway.ProxyTimeout == 0 {
		c.Gateway.ProxyTimeout = 30 * time.Second
	}
	for i := range c.Gateway.Services {
		if c.Gateway.Services[i].Timeout == 0 {
			c.Gateway.Services[i].Timeout = c.Gateway.ProxyTimeout
		}
		if c.Gateway.Services[i].RetryCount == 0 {
			c.Gateway.Services[i].RetryCount = 2
		}
	}
}
