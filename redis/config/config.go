package config

import (
	"bufio"
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/hdt3213/godis/lib/logger"
)

// ServerProperties defines global config properties
type ServerProperties struct {
	Bind            string `cfg:"bind"`
	Port            int    `cfg:"port"`
	Dir             string `cfg:"dir"`
	DBFilename      string `cfg:"dbfilename"`
	SnapshotBackend string `cfg:"snapshot-backend"`
	MaxClients      int    `cfg:"maxclients"`
	LogDir          string `cfg:"logdir"`
	// 过期键采样间隔，单位毫秒
	ExpireSampleMs int `cfg:"expire-sample-ms"`
	// config file path
	CfPath string `cfg:"cf,omitempty"`
}

// Properties holds global config properties
var Properties *ServerProperties

func init() {
	Properties = Default()
}

// Default returns the properties used when no config file is given
func Default() *ServerProperties {
	return &ServerProperties{
		Bind:            "0.0.0.0",
		Port:            6379,
		Dir:             ".",
		DBFilename:      "dump.rdb",
		SnapshotBackend: "rdb",
		MaxClients:      1000,
		ExpireSampleMs:  100,
	}
}

func tagName(field reflect.StructField) string {
	key, ok := field.Tag.Lookup("cfg")
	if !ok || strings.TrimLeft(key, " ") == "" {
		return field.Name
	}
	return strings.Split(key, ",")[0]
}

func parse(src io.Reader) *ServerProperties {
	config := Default()
	rawMap := make(map[string]string)
	// read config file
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// 判断是否当前行被注释
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) == 2 {
			rawMap[strings.ToLower(parts[0])] = parts[1]
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Fatal(err)
	}
	// store properties into Properties
	t := reflect.TypeOf(config)
	v := reflect.ValueOf(config)
	n := t.Elem().NumField()
	for i := 0; i < n; i++ {
		field := t.Elem().Field(i)
		fieldValue := v.Elem().Field(i)
		// get key from tag if not exists, use field name
		value, ok := rawMap[strings.ToLower(tagName(field))]
		if ok {
			switch field.Type.Kind() {
			case reflect.String:
				fieldValue.SetString(value)
			case reflect.Int:
				intValue, err := strconv.ParseInt(value, 10, 64)
				if err == nil {
					fieldValue.SetInt(intValue)
				}
			case reflect.Bool:
				boolValue := value == "yes"
				fieldValue.SetBool(boolValue)
			}
		}
	}
	return config
}

// SetupConfig read config file and store properties into Properties
func SetupConfig(configFilename string) {
	// read config file
	file, err := os.Open(configFilename)
	if err != nil {
		panic(err)
	}
	defer file.Close()
	// store properties into Properties
	Properties = parse(file)
	configFilePath, err := filepath.Abs(configFilename)
	if err != nil {
		return
	}
	Properties.CfPath = configFilePath
	if Properties.Dir == "" {
		Properties.Dir = "."
	}
}

// ParseFlags overrides Properties with command line flags, flags win over the config file
func ParseFlags(args []string) error {
	fs := flag.NewFlagSet("tuanredis", flag.ContinueOnError)
	port := fs.Int("port", 0, "listening port")
	dir := fs.String("dir", "", "snapshot directory")
	dbFilename := fs.String("dbfilename", "", "snapshot file name")
	backend := fs.String("snapshot-backend", "", "snapshot backend, rdb or bolt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *port != 0 {
		Properties.Port = *port
	}
	if *dir != "" {
		Properties.Dir = *dir
	}
	if *dbFilename != "" {
		Properties.DBFilename = *dbFilename
	}
	if *backend != "" {
		Properties.SnapshotBackend = *backend
	}
	return nil
}

// Get returns the value of the property whose cfg tag is name, as CONFIG GET shows it
func (p *ServerProperties) Get(name string) (string, bool) {
	t := reflect.TypeOf(p).Elem()
	v := reflect.ValueOf(p).Elem()
	for i := 0; i < t.NumField(); i++ {
		if !strings.EqualFold(tagName(t.Field(i)), name) {
			continue
		}
		fieldValue := v.Field(i)
		switch fieldValue.Kind() {
		case reflect.String:
			return fieldValue.String(), true
		case reflect.Int:
			return strconv.FormatInt(fieldValue.Int(), 10), true
		case reflect.Bool:
			if fieldValue.Bool() {
				return "yes", true
			}
			return "no", true
		}
	}
	return "", false
}

// Names returns the cfg names of all properties
func (p *ServerProperties) Names() []string {
	t := reflect.TypeOf(p).Elem()
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		names = append(names, tagName(t.Field(i)))
	}
	return names
}
