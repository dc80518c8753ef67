package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient читает секреты и кэширует их на время жизни процесса.
type SecretsClient struct {
	client SecretsAPI
	cache  map[string]string
	mu     sync.RWMutex
}

func NewSecretsClient(client SecretsAPI) *SecretsClient {
	return &SecretsClient{
		client: client,
		cache:  make(map[string]string),
	}
}

func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if v, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	s.mu.Lock()
	s.cache[name] = *out.SecretString
	s.mu.Unlock()

	return *out.SecretString, nil
}

// DBCredentials — учётные данные RDS в формате секрета Secrets Manager.
type DBCredentials struct {
	Username string
	Password string
	Host     string
	Port     int
	DBName   string
}

type rdsSecret struct {
	Username             string          `json:"username"`
	Password             string          `json:"password"`
	Host                 string          `json:"host"`
	Port                 json.RawMessage `json:"port"`
	DBName               string          `json:"dbname"`
	DBInstanceIdentifier string          `json:"dbInstanceIdentifier"`
}

// DBCredentials разбирает RDS-секрет. Порт может прийти числом или строкой;
// без dbname используется dbInstanceIdentifier.
func (s *SecretsClient) DBCredentials(ctx context.Context, secretID string) (*DBCredentials, error) {
	raw, err := s.GetSecret(ctx, secretID)
	if err != nil {
		return nil, err
	}
	return ParseDBCredentials(raw)
}

func ParseDBCredentials(raw string) (*DBCredentials, error) {
	var sec rdsSecret
	if err := json.Unmarshal([]byte(raw), &sec); err != nil {
		return nil, fmt.Errorf("failed to parse db secret: %w", err)
	}
	if sec.Username == "" || sec.Password == "" {
		return nil, fmt.Errorf("db secret has no username or password")
	}

	creds := &DBCredentials{
		Username: sec.Username,
		Password: sec.Password,
		Host:     sec.Host,
		DBName:   sec.DBName,
	}
	if creds.DBName == "" {
		creds.DBName = sec.DBInstanceIdentifier
	}

	if len(sec.Port) > 0 {
		var port string
		if err := json.Unmarshal(sec.Port, &port); err != nil {
			port = string(sec.Port)
		}
		p, err := strconv.Atoi(strings.TrimSpace(port))
		if err != nil {
			return nil, fmt.Errorf("db secret has invalid port %s", sec.Port)
		}
		creds.Port = p
	}
	return creds, nil
}
