package config

type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
	GRPC GRPCConfig `yaml:"grpc"`
}

type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

type GRPCConfig struct {
	Host string `yaml:"host"`
	// Port 0 disables the gRPC health listener
	Port int `yaml:"port" validate:"min=0,max=65535"`
}
