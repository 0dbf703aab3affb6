package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
target:
  base_url: "https://warroom.example.com"

server:
  websocket_port: "8080"

performance:
  sla_threshold_ms: 3000

scheduler:
  interval_seconds: 300

auto_fix:
  enabled: true
  max_attempts: 3
  cooldown_seconds: 60

knowledge:
  pieces_integration_enabled: false
  sink_dir: "knowledge-base"

sla_monitor:
  interval_seconds: 60
  tolerance_ms: 0
  samples_per_tick: 3
  rolling_window_ticks: 1

redis:
  addr: "localhost:6379"

logging:
  level: "info"
  format: "json"
`
				Expect(os.WriteFile(configFile, []byte(validConfig), 0644)).To(Succeed())
			})

			It("should load configuration successfully", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(config).NotTo(BeNil())

				Expect(config.Target.BaseURL).To(Equal("https://warroom.example.com"))
				Expect(config.Server.WebsocketPort).To(Equal("8080"))
				Expect(config.Performance.SLAThresholdMs).To(Equal(3000))
				Expect(config.Scheduler.IntervalSeconds).To(Equal(300))
				Expect(config.AutoFix.Enabled).To(BeTrue())
				Expect(config.Knowledge.SinkDir).To(Equal("knowledge-base"))
				Expect(config.SLAMonitor.SamplesPerTick).To(Equal(3))
				Expect(config.Redis.Addr).To(Equal("localhost:6379"))
				Expect(config.Logging.Level).To(Equal("info"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
target:
  base_url: "https://warroom.example.com"
`
				Expect(os.WriteFile(configFile, []byte(minimalConfig), 0644)).To(Succeed())
			})

			It("should load with defaults for missing values", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(config.Target.BaseURL).To(Equal("https://warroom.example.com"))
				Expect(config.Performance.SLAThresholdMs).To(Equal(3000))
				Expect(config.Scheduler.IntervalSeconds).To(Equal(300))
				Expect(config.SLAMonitor.SamplesPerTick).To(Equal(3))
				Expect(config.SLAMonitor.RollingWindowTicks).To(Equal(1))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
target:
  base_url: [
`
				Expect(os.WriteFile(configFile, []byte(invalidConfig), 0644)).To(Succeed())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when required target base_url is missing", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(configFile, []byte("server:\n  websocket_port: \"8080\"\n"), 0644)).To(Succeed())
			})

			It("should return a validation error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to validate config"))
			})
		})
	})

	Describe("validate", func() {
		var config *Config

		BeforeEach(func() {
			config = defaultConfig()
			config.Target.BaseURL = "https://warroom.example.com"
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				Expect(validate(config)).To(Succeed())
			})
		})

		Context("when target base_url is not a valid URL", func() {
			BeforeEach(func() {
				config.Target.BaseURL = "not-a-url"
			})

			It("should return a validation error", func() {
				Expect(validate(config)).To(HaveOccurred())
			})
		})

		Context("when sla_threshold_ms is zero", func() {
			BeforeEach(func() {
				config.Performance.SLAThresholdMs = 0
			})

			It("should return a validation error", func() {
				Expect(validate(config)).To(HaveOccurred())
			})
		})

		Context("when rolling_window_ticks is zero", func() {
			BeforeEach(func() {
				config.SLAMonitor.RollingWindowTicks = 0
			})

			It("should return a validation error", func() {
				Expect(validate(config)).To(HaveOccurred())
			})
		})
	})

	Describe("loadFromEnv", func() {
		var config *Config

		BeforeEach(func() {
			config = defaultConfig()
			os.Clearenv()
		})

		AfterEach(func() {
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("TARGET_URL", "https://override.example.com")
				os.Setenv("WEBSOCKET_PORT", "9999")
				os.Setenv("PERFORMANCE_SLA", "5000")
				os.Setenv("MONITORING_INTERVAL", "120")
				os.Setenv("PIECES_INTEGRATION_ENABLED", "true")
				os.Setenv("AUTO_FIX_ENABLED", "false")
			})

			It("should load values from environment", func() {
				Expect(loadFromEnv(config)).To(Succeed())

				Expect(config.Target.BaseURL).To(Equal("https://override.example.com"))
				Expect(config.Server.WebsocketPort).To(Equal("9999"))
				Expect(config.Performance.SLAThresholdMs).To(Equal(5000))
				Expect(config.Scheduler.IntervalSeconds).To(Equal(120))
				Expect(config.Knowledge.PiecesIntegrationEnabled).To(BeTrue())
				Expect(config.AutoFix.Enabled).To(BeFalse())
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify config", func() {
				original := *config
				Expect(loadFromEnv(config)).To(Succeed())
				Expect(*config).To(Equal(original))
			})
		})

		Context("when PERFORMANCE_SLA is not a number", func() {
			BeforeEach(func() {
				os.Setenv("PERFORMANCE_SLA", "not-a-number")
			})

			It("should return an error", func() {
				Expect(loadFromEnv(config)).To(HaveOccurred())
			})
		})
	})
})

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}
