package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/teller_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store a list under TypeList:$key
func StoreRedisList[T any](list []*T, key string) error {
	return config.SetRedisObject(GetTypeName[T]()+"List:"+key, list, GetCacheLifespan())
}

// retrieve a list, nil if absent
func RetrieveRedisList[T any](key string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(GetTypeName[T]()+"List:"+key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

func RemoveRedisList[T any](key string) error {
	return config.RemoveRedisKey(GetTypeName[T]() + "List:" + key)
}
